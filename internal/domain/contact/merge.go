package contact

import "fmt"

// Apply накладывает список обновлений на базовый список.
// Обновление сопоставляется с базовой записью по позиции: update-detail заменяет ее,
// delete-detail удаляет, остальное оставляет базовую запись. Затем добавляются все add-detail.
// Список обновлений должен быть построен тем же проходом, что и базовый, с сохранением индексов.
func Apply(base, updates []Change) []Change {
	out := make([]Change, 0, len(base)+len(updates))
	for i, b := range base {
		if i < len(updates) {
			switch updates[i].Type {
			case TypeUpdateDetail:
				out = append(out, updates[i])
				continue
			case TypeDeleteDetail:
				continue
			}
		}
		out = append(out, b)
	}
	for _, u := range updates {
		if u.Type == TypeAddDetail {
			out = append(out, u)
		}
	}
	return out
}

// ApplyKeyed накладывает обновления, сопоставляя их с базой по идентификатору поля:
// сначала в хранилище устройства, затем на сервере, затем локальному.
func ApplyKeyed(base, updates []Change) []Change {
	out := make([]Change, len(base))
	copy(out, base)
	removed := make([]bool, len(base))

	for _, u := range updates {
		switch u.Type {
		case TypeUpdateDetail, TypeDeleteDetail:
			i := indexByDetailID(out, removed, u)
			if i < 0 {
				continue
			}
			if u.Type == TypeDeleteDetail {
				removed[i] = true
			} else {
				out[i] = u
			}
		}
	}

	merged := make([]Change, 0, len(out)+len(updates))
	for i, c := range out {
		if !removed[i] {
			merged = append(merged, c)
		}
	}
	for _, u := range updates {
		if u.Type == TypeAddDetail {
			merged = append(merged, u)
		}
	}
	return merged
}

func indexByDetailID(list []Change, removed []bool, u Change) int {
	match := func(pick func(Change) ID) int {
		if !pick(u).HasDetail() {
			return -1
		}
		for i, c := range list {
			if !removed[i] && c.Key == u.Key && pick(c).Detail == pick(u).Detail {
				return i
			}
		}
		return -1
	}
	for _, pick := range []func(Change) ID{
		func(c Change) ID { return c.Store },
		func(c Change) ID { return c.Server },
		func(c Change) ID { return c.Local },
	} {
		if i := match(pick); i >= 0 {
			return i
		}
	}
	return -1
}

// Diff строит список обновлений, выровненный по base, такой что Apply(base, Diff(base, target))
// совпадает с target. Позиция i содержит запись с TypeUnknown (без изменений), update-detail
// или delete-detail для base[i]; после len(base) идут add-detail.
// Поля, не поддерживаемые профилем сравнения, не сравниваются и не добавляются.
func Diff(cmp *Comparator, base, target []Change) []Change {
	match := make([]int, len(base))
	for i := range match {
		match[i] = -1
	}
	used := make([]bool, len(target))
	skip := func(c Change) bool { return !cmp.Supports(c.Key) }

	pair := func(accept func(b, t Change) bool) {
		for i, b := range base {
			if match[i] >= 0 || skip(b) {
				continue
			}
			for j, t := range target {
				if used[j] || skip(t) || t.Key != b.Key || !accept(b, t) {
					continue
				}
				match[i] = j
				used[j] = true
				break
			}
		}
	}
	pair(func(b, t Change) bool { return b.Store.HasDetail() && b.Store.Detail == t.Store.Detail })
	pair(func(b, t Change) bool { return b.Server.HasDetail() && b.Server.Detail == t.Server.Detail })
	pair(func(b, t Change) bool { return cmp.Equal(b, t, false) })
	pair(func(b, t Change) bool { return !hasForeignIdentity(b, t) })

	updates := make([]Change, 0, len(base)+len(target))
	for i, b := range base {
		switch {
		case skip(b):
			updates = append(updates, b.As(TypeUnknown))
		case match[i] < 0:
			updates = append(updates, NewDeletion(TypeDeleteDetail, b.Key, b.Local, b.Server, b.Store))
		case cmp.Equal(b, target[match[i]], false):
			updates = append(updates, b.As(TypeUnknown))
		default:
			t := target[match[i]]
			u := b
			u.Value, u.Flags, u.Type = t.Value, t.Flags, TypeUpdateDetail
			u.Local, u.Server, u.Store = mergeID(b.Local, t.Local), mergeID(b.Server, t.Server), mergeID(b.Store, t.Store)
			updates = append(updates, u)
		}
	}
	for j, t := range target {
		if used[j] || skip(t) {
			continue
		}
		updates = append(updates, t.As(TypeAddDetail))
	}
	return updates
}

// Pending возвращает только записи с операцией
func Pending(updates []Change) []Change {
	out := make([]Change, 0, len(updates))
	for _, u := range updates {
		if u.Type != TypeUnknown {
			out = append(out, u)
		}
	}
	return out
}

// hasForeignIdentity сообщает, что t уже привязана к другому полю в каком-либо хранилище
func hasForeignIdentity(b, t Change) bool {
	if b.Store.HasDetail() && t.Store.HasDetail() && b.Store.Detail != t.Store.Detail {
		return true
	}
	if b.Server.HasDetail() && t.Server.HasDetail() && b.Server.Detail != t.Server.Detail {
		return true
	}
	return false
}

func mergeID(primary, fallback ID) ID {
	if !primary.HasContact() {
		primary.Contact = fallback.Contact
	}
	if !primary.HasDetail() {
		primary.Detail = fallback.Detail
	}
	return primary
}

// CheckSingular проверяет, что одиночные поля встречаются среди живых записей не более одного раза
func CheckSingular(list []Change) error {
	seen := make(map[Key]bool)
	for _, c := range list {
		if !c.IsLive() || !IsSingular(c.Key) {
			continue
		}
		if seen[c.Key] {
			return fmt.Errorf("%w: %s", ErrSingularKey, c.Key)
		}
		seen[c.Key] = true
	}
	return nil
}

// Clamp отбрасывает живые записи сверх допустимого числа для поля, сохраняя порядок
func Clamp(list []Change) []Change {
	counts := make(map[Key]int)
	out := make([]Change, 0, len(list))
	for _, c := range list {
		if c.IsLive() {
			if limit := MaxCardinality(c.Key); limit > 0 && counts[c.Key] >= limit {
				continue
			}
			counts[c.Key]++
		}
		out = append(out, c)
	}
	return out
}
