package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComparator_Equal(t *testing.T) {
	tests := []struct {
		name     string
		profile  *Profile
		a, b     Change
		identity bool
		expected bool
	}{
		{
			name:     "same value",
			profile:  FullProfile,
			a:        New(KeyEmail, "a@example.com", FlagHome),
			b:        New(KeyEmail, "a@example.com", FlagHome),
			expected: true,
		},
		{
			name:     "different key",
			profile:  FullProfile,
			a:        New(KeyEmail, "x", FlagNone),
			b:        New(KeyNote, "x", FlagNone),
			expected: false,
		},
		{
			name:     "different flags",
			profile:  FullProfile,
			a:        New(KeyPhone, "+1", FlagHome),
			b:        New(KeyPhone, "+1", FlagWork),
			expected: false,
		},
		{
			name:     "middle name differs on full profile",
			profile:  FullProfile,
			a:        New(KeyName, "Doe;John;Q", FlagNone),
			b:        New(KeyName, "Doe;John", FlagNone),
			expected: false,
		},
		{
			name:     "middle name ignored on legacy profile",
			profile:  LegacyProfile,
			a:        New(KeyName, "Doe;John;Q", FlagNone),
			b:        New(KeyName, "Doe;John", FlagNone),
			expected: true,
		},
		{
			name:     "trailing empty sub-fields",
			profile:  FullProfile,
			a:        New(KeyAddress, ";Main;Town;;", FlagHome),
			b:        New(KeyAddress, ";Main;Town", FlagHome),
			expected: true,
		},
		{
			name:     "preferred promoted on legacy profile",
			profile:  LegacyProfile,
			a:        New(KeyPhone, "+1", FlagCell),
			b:        New(KeyPhone, "+1", FlagCell|FlagPreferred),
			expected: true,
		},
		{
			name:     "preferred kept on full profile",
			profile:  FullProfile,
			a:        New(KeyPhone, "+1", FlagCell),
			b:        New(KeyPhone, "+1", FlagCell|FlagPreferred),
			expected: false,
		},
		{
			name:     "identity ignored",
			profile:  FullProfile,
			a:        Change{Key: KeyNote, Value: "n", Local: ID{1, 2}, Server: NoID(), Store: NoID()},
			b:        Change{Key: KeyNote, Value: "n", Local: ID{3, 4}, Server: NoID(), Store: NoID()},
			expected: true,
		},
		{
			name:     "identity compared",
			profile:  FullProfile,
			a:        Change{Key: KeyNote, Value: "n", Local: ID{1, 2}, Server: NoID(), Store: NoID()},
			b:        Change{Key: KeyNote, Value: "n", Local: ID{3, 4}, Server: NoID(), Store: NoID()},
			identity: true,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp := NewComparator(tt.profile)
			assert.Equal(t, tt.expected, cmp.Equal(tt.a, tt.b, tt.identity))
		})
	}
}

func TestComparator_EqualLists(t *testing.T) {
	cmp := NewComparator(FullProfile)
	a := []Change{New(KeyName, "Doe;John", FlagNone), New(KeyEmail, "j@example.com", FlagWork)}
	b := []Change{New(KeyEmail, "j@example.com", FlagWork), New(KeyName, "Doe;John", FlagNone)}

	assert.True(t, cmp.EqualLists(a, a, false))
	assert.False(t, cmp.EqualLists(a, b, false))
	assert.True(t, cmp.EqualListsUnordered(a, b, false))
	assert.False(t, cmp.EqualListsUnordered(a, b[:1], false))
}

func TestComparator_EqualListsUnordered_StoreDetailID(t *testing.T) {
	cmp := NewComparator(FullProfile)

	org := New(KeyOrganization, "Acme", FlagNone)
	org.Store = ID{Contact: 7, Detail: 70}
	title := New(KeyTitle, "Engineer", FlagNone)
	title.Store = ID{Contact: 7, Detail: 70}

	changedTitle := title
	changedTitle.Value = "Manager"

	assert.True(t, cmp.EqualListsUnordered([]Change{org, title}, []Change{title, org}, false))
	assert.False(t, cmp.EqualListsUnordered([]Change{org, title}, []Change{org, changedTitle}, false))
}

func TestComparator_SkipsUnsupportedKeys(t *testing.T) {
	cmp := NewComparator(LegacyProfile)
	local := []Change{New(KeyName, "Doe;John", FlagNone), New(KeyNickname, "JD", FlagNone)}
	device := []Change{New(KeyName, "Doe;John", FlagNone)}

	assert.True(t, cmp.EqualLists(local, device, false))
	assert.True(t, cmp.EqualListsUnordered(local, device, false))
	assert.False(t, NewComparator(FullProfile).EqualLists(local, device, false))
}

func TestProfileByName(t *testing.T) {
	p, err := ProfileByName("legacy")
	assert.NoError(t, err)
	assert.Same(t, LegacyProfile, p)

	p, err = ProfileByName("")
	assert.NoError(t, err)
	assert.Same(t, FullProfile, p)

	_, err = ProfileByName("symbian")
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestNormalizeFlags(t *testing.T) {
	assert.Equal(t, FlagHome|FlagCell, NormalizeFlags(KeyPhone, FlagHome|FlagCell))
	assert.Equal(t, FlagWork|FlagPreferred, NormalizeFlags(KeyEmail, FlagWork|FlagFax|FlagPreferred))
	assert.Equal(t, FlagOther, NormalizeFlags(KeyAddress, FlagCell))
	assert.Equal(t, FlagNone, NormalizeFlags(KeyNote, FlagHome))
}

func TestKeys(t *testing.T) {
	for _, k := range Keys() {
		parsed, err := ParseKey(k.String())
		assert.NoError(t, err)
		assert.Equal(t, k, parsed)
		assert.Positive(t, MaxCardinality(k))
	}

	_, err := ParseKey("fax-machine")
	assert.ErrorIs(t, err, ErrUnknownKey)

	assert.True(t, IsSingular(KeyName))
	assert.False(t, IsSingular(KeyPhone))
}
