package contact

import (
	"fmt"
	"strings"
)

// Profile описывает возможности адресной книги устройства.
// Выбирается один раз при старте и передается сравнению, импорту и экспорту.
// Нулевой указатель означает хранилище без ограничений.
type Profile struct {
	Name string

	unsupported       map[Key]bool
	promotesPreferred map[Key]bool
	fullName          bool
	poBox             bool
	department        bool
}

var (
	// FullProfile хранилище, сохраняющее все поля и подполя
	FullProfile = &Profile{
		Name:       "full",
		fullName:   true,
		poBox:      true,
		department: true,
	}

	// LegacyProfile старое хранилище без псевдонима и дня рождения;
	// хранит только имя и фамилию, без абонентского ящика,
	// а первый телефон всегда помечает предпочтительным
	LegacyProfile = &Profile{
		Name: "legacy",
		unsupported: map[Key]bool{
			KeyNickname: true,
			KeyBirthday: true,
		},
		promotesPreferred: map[Key]bool{
			KeyPhone: true,
		},
		department: true,
	}
)

// ProfileByName возвращает профиль по имени из конфигурации
func ProfileByName(name string) (*Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", FullProfile.Name:
		return FullProfile, nil
	case LegacyProfile.Name:
		return LegacyProfile, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
}

// IsKeySupported сообщает, умеет ли хранилище хранить поле
func (p *Profile) IsKeySupported(k Key) bool {
	if k == KeyUnknown {
		return false
	}
	if p == nil {
		return true
	}
	return !p.unsupported[k]
}

// PromotesPreferred сообщает, может ли хранилище само пометить запись предпочтительной
func (p *Profile) PromotesPreferred(k Key) bool {
	if p == nil {
		return false
	}
	return p.promotesPreferred[k]
}

// NarrowValue отбрасывает подполя, которые хранилище не сохраняет
func (p *Profile) NarrowValue(k Key, v string) string {
	v = NormalizeValue(k, v)
	if p == nil {
		return v
	}
	switch k {
	case KeyName:
		if !p.fullName {
			n := ParseName(v)
			return Name{Family: n.Family, Given: n.Given}.String()
		}
	case KeyAddress:
		if !p.poBox {
			a := ParseAddress(v)
			a.POBox = ""
			return a.String()
		}
	case KeyOrganization:
		if !p.department {
			return Organization{Company: ParseOrganization(v).Company}.String()
		}
	}
	return v
}

// NarrowFlags приводит флаги к комбинации, допустимой для поля
func (p *Profile) NarrowFlags(k Key, f Flags) Flags {
	return NormalizeFlags(k, f)
}

// Filter убирает записи с полями, которые хранилище не поддерживает
func (p *Profile) Filter(list []Change) []Change {
	out := make([]Change, 0, len(list))
	for _, c := range list {
		if p.IsKeySupported(c.Key) {
			out = append(out, c)
		}
	}
	return out
}
