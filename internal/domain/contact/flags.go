package contact

// Flags категория поля и признак предпочтительного значения
type Flags uint32

const (
	FlagHome Flags = 1 << iota
	FlagWork
	FlagCell
	FlagFax
	FlagPager
	FlagOther

	FlagPreferred Flags = 1 << 8
	FlagNone      Flags = 0
)

// Category возвращает флаги без признака предпочтения
func (f Flags) Category() Flags {
	return f &^ FlagPreferred
}

// IsPreferred сообщает, отмечено ли значение как предпочтительное
func (f Flags) IsPreferred() bool {
	return f&FlagPreferred != 0
}

// categories допустимые комбинации категорий по полям; поля без записи принимают только FlagNone
var categories = map[Key][]Flags{
	KeyPhone: {
		FlagNone, FlagHome, FlagWork, FlagCell, FlagFax, FlagPager, FlagOther,
		FlagHome | FlagCell, FlagWork | FlagCell, FlagHome | FlagFax, FlagWork | FlagFax,
	},
	KeyEmail:   {FlagNone, FlagHome, FlagWork, FlagOther},
	KeyAddress: {FlagNone, FlagHome, FlagWork, FlagOther},
	KeyURL:     {FlagNone, FlagHome, FlagWork, FlagOther},
}

// Categories возвращает допустимые категории поля
func Categories(k Key) []Flags {
	if c, ok := categories[k]; ok {
		return c
	}
	return []Flags{FlagNone}
}

// ValidFlags проверяет, допустима ли комбинация категорий для поля
func ValidFlags(k Key, f Flags) bool {
	category := f.Category()
	for _, c := range Categories(k) {
		if c == category {
			return true
		}
	}
	return false
}

// NormalizeFlags приводит недопустимую категорию к ближайшей допустимой, признак предпочтения сохраняется
func NormalizeFlags(k Key, f Flags) Flags {
	if ValidFlags(k, f) {
		return f
	}
	preferred := f & FlagPreferred
	category := f.Category()
	for _, single := range []Flags{FlagCell, FlagFax, FlagWork, FlagHome, FlagPager} {
		if category&single != 0 && ValidFlags(k, single) {
			return single | preferred
		}
	}
	if ValidFlags(k, FlagOther) {
		return FlagOther | preferred
	}
	return preferred
}
