package contact

// Comparator сравнивает записи с учетом возможностей хранилища назначения
type Comparator struct {
	profile *Profile
}

// NewComparator создает сравнение для профиля; nil означает хранилище без ограничений
func NewComparator(profile *Profile) *Comparator {
	return &Comparator{profile: profile}
}

// Profile возвращает профиль сравнения
func (c *Comparator) Profile() *Profile {
	return c.profile
}

// Supports сообщает, участвует ли поле в сравнении
func (c *Comparator) Supports(k Key) bool {
	return c.profile.IsKeySupported(k)
}

// Equal сравнивает две записи. Идентификаторы и операция сравниваются только при compareIdentity.
func (c *Comparator) Equal(a, b Change, compareIdentity bool) bool {
	if a.Key != b.Key {
		return false
	}
	if !c.valueEqual(a.Key, a.Value, b.Value) {
		return false
	}
	if !c.flagsEqual(a.Key, a.Flags, b.Flags) {
		return false
	}
	if compareIdentity {
		return a.Type == b.Type && a.Local == b.Local && a.Server == b.Server && a.Store == b.Store
	}
	return true
}

// EqualLists сравнивает списки поэлементно по порядку, пропуская неподдерживаемые поля
func (c *Comparator) EqualLists(a, b []Change, compareIdentity bool) bool {
	fa, fb := c.profile.Filter(a), c.profile.Filter(b)
	if len(fa) != len(fb) {
		return false
	}
	for i := range fa {
		if !c.Equal(fa[i], fb[i], compareIdentity) {
			return false
		}
	}
	return true
}

// EqualListsUnordered сравнивает списки без учета порядка.
// Записи с известным идентификатором поля в хранилище устройства сопоставляются по паре (поле, идентификатор),
// остальные по значению.
func (c *Comparator) EqualListsUnordered(a, b []Change, compareIdentity bool) bool {
	fa, fb := c.profile.Filter(a), c.profile.Filter(b)
	if len(fa) != len(fb) {
		return false
	}

	used := make([]bool, len(fb))
	pending := make([]Change, 0, len(fa))
	for _, x := range fa {
		j := indexByStoreDetail(fb, used, x)
		if j < 0 {
			pending = append(pending, x)
			continue
		}
		if !c.Equal(x, fb[j], compareIdentity) {
			return false
		}
		used[j] = true
	}

	for _, x := range pending {
		found := false
		for j, y := range fb {
			if used[j] || !c.Equal(x, y, compareIdentity) {
				continue
			}
			used[j] = true
			found = true
			break
		}
		if !found {
			return false
		}
	}
	return true
}

func (c *Comparator) valueEqual(k Key, a, b string) bool {
	if IsStructured(k) {
		return c.profile.NarrowValue(k, a) == c.profile.NarrowValue(k, b)
	}
	return a == b
}

func (c *Comparator) flagsEqual(k Key, a, b Flags) bool {
	a, b = c.profile.NarrowFlags(k, a), c.profile.NarrowFlags(k, b)
	if c.profile.PromotesPreferred(k) {
		a, b = a.Category(), b.Category()
	}
	return a == b
}

func indexByStoreDetail(list []Change, used []bool, x Change) int {
	if !x.Store.HasDetail() {
		return -1
	}
	for j, y := range list {
		if !used[j] && y.Key == x.Key && y.Store.Detail == x.Store.Detail {
			return j
		}
	}
	return -1
}
