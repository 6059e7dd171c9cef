package contact

import "strings"

const (
	fieldSeparator = ';'
	escapeChar     = '\\'
)

// Name структурированное имя; сериализуется как family;given;middle;prefix;suffix
type Name struct {
	Family string
	Given  string
	Middle string
	Prefix string
	Suffix string
}

func ParseName(v string) Name {
	f := splitFields(v, 5)
	return Name{Family: f[0], Given: f[1], Middle: f[2], Prefix: f[3], Suffix: f[4]}
}

func (n Name) String() string {
	return joinFields(n.Family, n.Given, n.Middle, n.Prefix, n.Suffix)
}

// Display возвращает имя для показа пользователю
func (n Name) Display() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{n.Prefix, n.Given, n.Middle, n.Family, n.Suffix} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Address почтовый адрес; сериализуется как pobox;street;city;region;postcode;country
type Address struct {
	POBox      string
	Street     string
	City       string
	Region     string
	PostalCode string
	Country    string
}

func ParseAddress(v string) Address {
	f := splitFields(v, 6)
	return Address{POBox: f[0], Street: f[1], City: f[2], Region: f[3], PostalCode: f[4], Country: f[5]}
}

func (a Address) String() string {
	return joinFields(a.POBox, a.Street, a.City, a.Region, a.PostalCode, a.Country)
}

// Organization компания и подразделение; сериализуется как company;department
type Organization struct {
	Company    string
	Department string
}

func ParseOrganization(v string) Organization {
	f := splitFields(v, 2)
	return Organization{Company: f[0], Department: f[1]}
}

func (o Organization) String() string {
	return joinFields(o.Company, o.Department)
}

// IsStructured сообщает, хранит ли поле несколько подполей в одной строке
func IsStructured(k Key) bool {
	return k == KeyName || k == KeyAddress || k == KeyOrganization
}

// NormalizeValue приводит значение к канонической форме грамматики поля
func NormalizeValue(k Key, v string) string {
	switch k {
	case KeyName:
		return ParseName(v).String()
	case KeyAddress:
		return ParseAddress(v).String()
	case KeyOrganization:
		return ParseOrganization(v).String()
	default:
		return strings.TrimSpace(v)
	}
}

// splitFields разбирает строку на n подполей с учетом экранирования
func splitFields(v string, n int) []string {
	fields := make([]string, n)
	var b strings.Builder
	idx := 0
	escaped := false
	for _, r := range v {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == escapeChar:
			escaped = true
		case r == fieldSeparator:
			if idx < n {
				fields[idx] = strings.TrimSpace(b.String())
			}
			idx++
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	if idx < n {
		fields[idx] = strings.TrimSpace(b.String())
	}
	return fields
}

// joinFields собирает подполя, отбрасывая пустой хвост
func joinFields(fields ...string) string {
	last := len(fields) - 1
	for last >= 0 && strings.TrimSpace(fields[last]) == "" {
		last--
	}
	var b strings.Builder
	for i := 0; i <= last; i++ {
		if i > 0 {
			b.WriteRune(fieldSeparator)
		}
		for _, r := range strings.TrimSpace(fields[i]) {
			if r == fieldSeparator || r == escapeChar {
				b.WriteRune(escapeChar)
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}
