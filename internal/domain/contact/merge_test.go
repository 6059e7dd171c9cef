package contact

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomDetails создает список полей одного контакта с соблюдением допустимого числа полей
func randomDetails(r *rand.Rand, nextID *int64) []Change {
	var list []Change
	for _, k := range Keys() {
		n := r.Intn(MaxCardinality(k) + 1)
		for i := 0; i < n; i++ {
			list = append(list, randomDetail(r, k, nextID))
		}
	}
	r.Shuffle(len(list), func(i, j int) { list[i], list[j] = list[j], list[i] })
	return list
}

func randomDetail(r *rand.Rand, k Key, nextID *int64) Change {
	categories := Categories(k)
	c := New(k, randomValue(r, k), categories[r.Intn(len(categories))])
	*nextID++
	c.Local = ID{Contact: 1, Detail: *nextID}
	c.Store = ID{Contact: 100, Detail: *nextID + 1000}
	return c
}

func randomValue(r *rand.Rand, k Key) string {
	switch k {
	case KeyName:
		return Name{Family: fmt.Sprintf("F%d", r.Intn(50)), Given: fmt.Sprintf("G%d", r.Intn(50))}.String()
	case KeyAddress:
		return Address{Street: fmt.Sprintf("%d Main St", r.Intn(500)), City: "Town"}.String()
	case KeyOrganization:
		return Organization{Company: fmt.Sprintf("Co%d", r.Intn(20))}.String()
	default:
		return fmt.Sprintf("%s-%d", k, r.Intn(1000))
	}
}

// mutate изменяет, удаляет и добавляет поля так, как это сделал бы пользователь
func mutate(r *rand.Rand, base []Change, nextID *int64) []Change {
	counts := make(map[Key]int)
	var target []Change
	for _, b := range base {
		switch r.Intn(3) {
		case 0:
			target = append(target, b)
			counts[b.Key]++
		case 1:
			b.Value = randomValue(r, b.Key)
			target = append(target, b)
			counts[b.Key]++
		}
	}
	for _, k := range Keys() {
		for counts[k] < MaxCardinality(k) && r.Intn(3) == 0 {
			d := randomDetail(r, k, nextID)
			d.Local.Detail = InvalidID
			d.Store = NoID()
			target = append(target, d)
			counts[k]++
		}
	}
	return target
}

func TestApply(t *testing.T) {
	name := New(KeyName, "Doe;John", FlagNone)
	phone := New(KeyPhone, "+1", FlagCell)
	email := New(KeyEmail, "j@example.com", FlagHome)
	base := []Change{name, phone, email}

	newName := name
	newName.Value = "Doe;Jane"
	updates := []Change{
		newName.As(TypeUpdateDetail),
		phone.As(TypeDeleteDetail),
		email.As(TypeUnknown),
		New(KeyNote, "hello", FlagNone).As(TypeAddDetail),
	}

	// Act
	result := Apply(base, updates)

	// Assert
	require.Len(t, result, 3)
	assert.Equal(t, "Doe;Jane", result[0].Value)
	assert.Equal(t, email, result[1])
	assert.Equal(t, KeyNote, result[2].Key)
}

func TestApply_ShortUpdateList(t *testing.T) {
	base := []Change{New(KeyName, "Doe;John", FlagNone), New(KeyNote, "n", FlagNone)}

	result := Apply(base, nil)

	assert.Equal(t, base, result)
}

func TestApplyKeyed(t *testing.T) {
	phone := New(KeyPhone, "+1", FlagCell)
	phone.Store = ID{Contact: 5, Detail: 51}
	email := New(KeyEmail, "j@example.com", FlagHome)
	email.Store = ID{Contact: 5, Detail: 52}
	base := []Change{phone, email}

	newEmail := email
	newEmail.Value = "jane@example.com"
	updates := []Change{
		newEmail.As(TypeUpdateDetail),
		NewDeletion(TypeDeleteDetail, KeyPhone, NoID(), NoID(), ID{Contact: 5, Detail: 51}),
	}

	result := ApplyKeyed(base, updates)

	require.Len(t, result, 1)
	assert.Equal(t, "jane@example.com", result[0].Value)
}

func TestDiff_Aligned(t *testing.T) {
	cmp := NewComparator(FullProfile)
	name := New(KeyName, "Doe;John", FlagNone)
	name.Store = ID{Contact: 1, Detail: 10}
	phone := New(KeyPhone, "+1", FlagCell)
	phone.Store = ID{Contact: 1, Detail: 11}
	base := []Change{name, phone}

	changed := phone
	changed.Value = "+2"
	target := []Change{changed, New(KeyEmail, "j@example.com", FlagWork)}

	// Act
	updates := Diff(cmp, base, target)

	// Assert
	require.Len(t, updates, 3)
	assert.Equal(t, TypeDeleteDetail, updates[0].Type)
	assert.Equal(t, ID{Contact: 1, Detail: 10}, updates[0].Store)
	assert.Equal(t, TypeUpdateDetail, updates[1].Type)
	assert.Equal(t, "+2", updates[1].Value)
	assert.Equal(t, TypeAddDetail, updates[2].Type)
	assert.Len(t, Pending(updates), 3)
}

func TestDiff_NoChanges(t *testing.T) {
	cmp := NewComparator(FullProfile)
	base := []Change{New(KeyName, "Doe;John", FlagNone), New(KeyPhone, "+1", FlagCell)}

	updates := Diff(cmp, base, base)

	assert.Empty(t, Pending(updates))
}

func TestDiff_KeepsUnsupportedKeys(t *testing.T) {
	cmp := NewComparator(LegacyProfile)
	local := []Change{New(KeyName, "Doe;John", FlagNone), New(KeyNickname, "JD", FlagNone)}
	device := []Change{New(KeyName, "Doe;John", FlagNone)}

	updates := Diff(cmp, local, device)

	assert.Empty(t, Pending(updates))
	assert.Len(t, Apply(local, updates), 2)
}

func TestApplyDiff_RoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	cmp := NewComparator(FullProfile)
	var nextID int64

	for i := 0; i < 500; i++ {
		base := randomDetails(r, &nextID)
		target := mutate(r, base, &nextID)

		merged := Apply(base, Diff(cmp, base, target))

		require.True(t, cmp.EqualListsUnordered(merged, target, false), "iteration %d: %v != %v", i, merged, target)
		require.NoError(t, CheckSingular(merged))
	}
}

func TestCheckSingular(t *testing.T) {
	tests := []struct {
		name    string
		list    []Change
		wantErr bool
	}{
		{
			name: "single name",
			list: []Change{New(KeyName, "a", FlagNone), New(KeyPhone, "1", FlagNone), New(KeyPhone, "2", FlagNone)},
		},
		{
			name:    "two names",
			list:    []Change{New(KeyName, "a", FlagNone), New(KeyName, "b", FlagNone)},
			wantErr: true,
		},
		{
			name: "deleted name does not count",
			list: []Change{New(KeyName, "a", FlagNone).As(TypeDeleteDetail), New(KeyName, "b", FlagNone)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSingular(tt.list)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSingularKey)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	var list []Change
	for i := 0; i < 7; i++ {
		list = append(list, New(KeyPhone, fmt.Sprint(i), FlagNone))
	}
	list = append(list, New(KeyURL, "a", FlagNone), New(KeyURL, "b", FlagNone))

	clamped := Clamp(list)

	assert.Len(t, clamped, 6)
	assert.NoError(t, CheckSingular(clamped))
}

func TestWithLocalContact(t *testing.T) {
	list := []Change{
		New(KeyName, "Doe;John", FlagNone).As(TypeAddDetail),
		NewDeletion(TypeDeleteDetail, KeyPhone, ID{Contact: 3, Detail: 8}, NoID(), NoID()),
	}

	out := WithLocalContact(list, 3)

	require.Len(t, out, 2)
	assert.Equal(t, ID{Contact: 3, Detail: InvalidID}, out[0].Local)
	assert.Equal(t, ID{Contact: 3, Detail: 8}, out[1].Local)
	assert.Equal(t, InvalidID, list[0].Local.Contact)
}
