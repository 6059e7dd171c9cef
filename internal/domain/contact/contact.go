package contact

// Summary сводные данные контакта, не входящие в список полей
type Summary struct {
	Bio       string   `json:"bio,omitempty"`
	PhotoPath string   `json:"photo_path,omitempty"`
	Gender    string   `json:"gender,omitempty"`
	Groups    []int64  `json:"groups,omitempty"`
	Sources   []string `json:"sources,omitempty"`
	UserID    int64    `json:"user_id,omitempty"`
}

// Contact контакт локального хранилища: идентификаторы в трех хранилищах и список полей
type Contact struct {
	LocalID  int64    `json:"local_id"`
	ServerID int64    `json:"server_id"`
	StoreID  int64    `json:"store_id"`
	Details  []Change `json:"details"`
	Summary  Summary  `json:"summary"`
	Deleted  bool     `json:"deleted,omitempty"`
}

// Structural возвращает копию контакта без сводных данных
func (c Contact) Structural() Contact {
	details := make([]Change, len(c.Details))
	copy(details, c.Details)
	return Contact{
		LocalID:  c.LocalID,
		ServerID: c.ServerID,
		StoreID:  c.StoreID,
		Details:  details,
	}
}

// Detail возвращает первое поле с указанным ключом
func (c Contact) Detail(k Key) (Change, bool) {
	for _, d := range c.Details {
		if d.Key == k {
			return d, true
		}
	}
	return Change{}, false
}

// DisplayName строит отображаемое имя из поля имени
func (c Contact) DisplayName() string {
	if d, ok := c.Detail(KeyName); ok {
		return ParseName(d.Value).Display()
	}
	if d, ok := c.Detail(KeyOrganization); ok {
		return ParseOrganization(d.Value).Company
	}
	return ""
}
