package contact

import (
	"fmt"
	"strings"
)

// Key вид поля контакта
type Key int

const (
	KeyUnknown Key = iota
	KeyName
	KeyNickname
	KeyPhone
	KeyEmail
	KeyAddress
	KeyOrganization
	KeyTitle
	KeyURL
	KeyNote
	KeyBirthday
)

var keyNames = map[Key]string{
	KeyUnknown:      "unknown",
	KeyName:         "name",
	KeyNickname:     "nickname",
	KeyPhone:        "phone",
	KeyEmail:        "email",
	KeyAddress:      "address",
	KeyOrganization: "organization",
	KeyTitle:        "title",
	KeyURL:          "url",
	KeyNote:         "note",
	KeyBirthday:     "birthday",
}

// maxCardinality максимальное число экземпляров поля в одном контакте
var maxCardinality = map[Key]int{
	KeyName:         1,
	KeyNickname:     1,
	KeyPhone:        5,
	KeyEmail:        5,
	KeyAddress:      3,
	KeyOrganization: 1,
	KeyTitle:        1,
	KeyURL:          1,
	KeyNote:         1,
	KeyBirthday:     1,
}

// Keys возвращает все известные поля в каноническом порядке
func Keys() []Key {
	return []Key{
		KeyName, KeyNickname, KeyPhone, KeyEmail, KeyAddress,
		KeyOrganization, KeyTitle, KeyURL, KeyNote, KeyBirthday,
	}
}

func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("key(%d)", int(k))
}

// ParseKey разбирает имя поля
func ParseKey(s string) (Key, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range keyNames {
		if name == s && k != KeyUnknown {
			return k, nil
		}
	}
	return KeyUnknown, fmt.Errorf("%w: %q", ErrUnknownKey, s)
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MaxCardinality возвращает допустимое число записей поля на контакт
func MaxCardinality(k Key) int {
	return maxCardinality[k]
}

// IsSingular сообщает, может ли поле встречаться в контакте только один раз
func IsSingular(k Key) bool {
	return maxCardinality[k] == 1
}
