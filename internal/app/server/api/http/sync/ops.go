package sync

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) operation(id, method, path, summary, description string) huma.Operation {
	return huma.Operation{
		OperationID: id,
		Method:      method,
		Path:        path,
		Summary:     summary,
		Description: description,
		Tags:        []string{"sync"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) changesOp() huma.Operation {
	return h.operation("sync-changes", http.MethodPost, "/api/sync/changes",
		"Получить страницу изменений",
		"Возвращает контакты, измененные после якоря; первая страница фиксирует новый якорь")
}

func (h *Handler) pushContactsOp() huma.Operation {
	return h.operation("sync-push-contacts", http.MethodPost, "/api/sync/contacts",
		"Выгрузить новые контакты",
		"Сохраняет новые контакты и возвращает назначенные идентификаторы в порядке отправки")
}

func (h *Handler) pushDetailsOp() huma.Operation {
	return h.operation("sync-push-details", http.MethodPost, "/api/sync/details",
		"Выгрузить измененные поля",
		"Добавляет и изменяет поля существующих контактов")
}

func (h *Handler) deleteContactsOp() huma.Operation {
	return h.operation("sync-delete-contacts", http.MethodPost, "/api/sync/contacts/delete",
		"Удалить контакты", "Помечает контакты удаленными")
}

func (h *Handler) deleteDetailsOp() huma.Operation {
	return h.operation("sync-delete-details", http.MethodPost, "/api/sync/details/delete",
		"Удалить поля", "Помечает поля удаленными и возвращает количество удаленных")
}

func (h *Handler) addGroupMembersOp() huma.Operation {
	return h.operation("sync-groups-add", http.MethodPost, "/api/sync/groups/add",
		"Добавить контакты в группы", "Создает связи контакт-группа")
}

func (h *Handler) removeGroupMembersOp() huma.Operation {
	return h.operation("sync-groups-remove", http.MethodPost, "/api/sync/groups/remove",
		"Удалить контакты из групп", "Удаляет связи контакт-группа")
}

func (h *Handler) fetchThumbnailsOp() huma.Operation {
	return h.operation("sync-thumbnails-fetch", http.MethodPost, "/api/sync/thumbnails/fetch",
		"Получить миниатюры", "Возвращает миниатюры указанных контактов")
}

func (h *Handler) pushThumbnailsOp() huma.Operation {
	return h.operation("sync-thumbnails-push", http.MethodPost, "/api/sync/thumbnails/push",
		"Выгрузить миниатюры", "Сохраняет миниатюры контактов")
}

func (h *Handler) profileOp() huma.Operation {
	return h.operation("profile-get", http.MethodGet, "/api/profile",
		"Получить профиль", "Возвращает профиль владельца учетной записи")
}
