package engine

import (
	"fmt"

	"contactsync/internal/app/client/addressbook"
	"contactsync/internal/app/client/native"
	"contactsync/internal/app/client/processor"
	"contactsync/internal/app/client/store"
	"contactsync/internal/domain/contact"
	"contactsync/internal/utils/logger"

	"golang.org/x/exp/slog"
)

// Factory создает процессор для этапа
type Factory interface {
	New(mode Mode, state State, host processor.Host) (processor.Processor, error)
}

// Deps зависимости процессоров
type Deps struct {
	Server    processor.Server
	Store     store.Store
	Book      addressbook.Book
	Processor processor.Config
	Native    native.Config
	Log       *slog.Logger
}

type factory struct {
	deps Deps
	// cmp сравнивает записи локального хранилища, которое хранит все поля
	cmp *contact.Comparator
}

func NewFactory(deps Deps) Factory {
	deps.Log = logger.OrDiscard(deps.Log)
	return &factory{deps: deps, cmp: contact.NewComparator(nil)}
}

func (f *factory) New(mode Mode, state State, host processor.Host) (processor.Processor, error) {
	d := f.deps
	switch state {
	case StateFetchingServerContacts:
		return processor.NewDownload(host, d.Server, d.Store, f.cmp, d.Processor, d.Log), nil
	case StateFetchingNativeContacts:
		im := native.NewImporter(d.Book, d.Store, d.Native, mode == ModeFullSyncFirstTime, d.Log)
		return processor.NewNative(host, im, "native-import", d.Log), nil
	case StateSyncingProfile:
		return processor.NewProfile(host, d.Server, d.Store, d.Processor, d.Log), nil
	case StateUpdatingServerContacts:
		return processor.NewUpload(host, d.Server, d.Store, d.Processor, d.Log), nil
	case StateFetchingServerThumbnails:
		return processor.NewThumbnails(host, d.Server, d.Store, processor.ThumbnailsFetch, d.Processor, d.Log), nil
	case StateUpdatingServerThumbnails:
		return processor.NewThumbnails(host, d.Server, d.Store, processor.ThumbnailsPush, d.Processor, d.Log), nil
	case StateUpdatingNativeContacts:
		ex := native.NewExporter(d.Book, d.Store, d.Native, d.Log)
		return processor.NewNative(host, ex, "native-export", d.Log), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, state)
	}
}
