package mapper

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrs "github.com/jamesprial/go-fbgraph/pkg/errors"
	"github.com/jamesprial/go-fbgraph/pkg/jsonvalue"
)

type namedObject struct {
	UID  int64  `facebook:"uid"`
	Name string `facebook:"name"`
}

type Base struct {
	UID int64 `facebook:"uid"`
}

type person struct {
	namedObject
	Email string `facebook:"email"`
}

type employee struct {
	person
	Badge string `facebook:""`
}

type testEnum string

func (testEnum) EnumNames() []string { return []string{"ONE", "TWO"} }

type weekday int

const (
	monday weekday = iota + 1
	tuesday
	wednesday
)

func (weekday) EnumNames() []string { return []string{"MONDAY", "TUESDAY", "WEDNESDAY"} }

type enumHolder struct {
	TestEnum    *testEnum `facebook:"test_enum"`
	TestEnumRaw string    `facebook:"test_enum"`
	Day         weekday   `facebook:"day"`
}

type place struct {
	City      string  `facebook:"city"`
	Latitude  float64 `facebook:"latitude"`
	Longitude float64 `facebook:"longitude"`
}

type checkin struct {
	ID          string   `facebook:"id"`
	Location    *place   `facebook:"location"`
	LocationRaw string   `facebook:"location"`
	Tags        []string `facebook:"tags"`
}

type profile struct {
	Affiliations []namedObject    `facebook:"affiliations"`
	Counts       map[string]int   `facebook:"counts"`
	Extra        jsonvalue.Value  `facebook:"extra"`
	Raw          json.RawMessage  `facebook:"raw"`
	Anything     any              `facebook:"anything"`
	Score        *big.Int         `facebook:"score"`
	Ratio        big.Float        `facebook:"ratio"`
	Updated      time.Time        `facebook:"updated_time"`
	Verified     bool             `facebook:"verified"`
	Small        int8             `facebook:"small"`
	Ignored      string           `facebook:"-"`
	Untagged     string
	Nested       map[string][]int `facebook:"nested"`
}

func TestSuperclassDiscovery(t *testing.T) {
	m := New()
	e, err := Object[employee](m, `{"uid":1234,"name":"Test Person","email":"t@example.com","badge":"B-7"}`)
	require.NoError(t, err)

	assert.Equal(t, int64(1234), e.UID)
	assert.Equal(t, "Test Person", e.Name)
	assert.Equal(t, "t@example.com", e.Email)
	assert.Equal(t, "B-7", e.Badge)
}

func TestEmbeddedPointerIsAllocated(t *testing.T) {
	type withPtr struct {
		*Base
		Extra string `facebook:"extra"`
	}

	m := New()
	got, err := Object[withPtr](m, `{"uid":7,"extra":"x"}`)
	require.NoError(t, err)
	require.NotNil(t, got.Base)
	assert.Equal(t, int64(7), got.UID)

	got, err = Object[withPtr](m, `{"extra":"x"}`)
	require.NoError(t, err)
	assert.Nil(t, got.Base)
}

func TestEmptyObjectAsEmptyList(t *testing.T) {
	m := New()
	p, err := Object[profile](m, `{"affiliations": {}}`)
	require.NoError(t, err)
	require.NotNil(t, p.Affiliations)
	assert.Empty(t, p.Affiliations)
}

func TestEnumForwardCompatibility(t *testing.T) {
	m := New()

	got, err := Object[enumHolder](m, `{"test_enum":"NOT_A_KNOWN_VALUE","day":"SUNDAY"}`)
	require.NoError(t, err)
	assert.Nil(t, got.TestEnum)
	assert.Equal(t, "NOT_A_KNOWN_VALUE", got.TestEnumRaw)
	assert.Equal(t, weekday(0), got.Day)

	text, err := m.ToJSON(got)
	require.NoError(t, err)
	assert.Contains(t, text, `"day":null`, "an unknown name must not turn into the first constant")

	got, err = Object[enumHolder](m, `{"test_enum":"TWO","day":"WEDNESDAY"}`)
	require.NoError(t, err)
	require.NotNil(t, got.TestEnum)
	assert.Equal(t, testEnum("TWO"), *got.TestEnum)
	assert.Equal(t, "TWO", got.TestEnumRaw)
	assert.Equal(t, wednesday, got.Day)

	got, err = Object[enumHolder](m, `{"day":"MONDAY"}`)
	require.NoError(t, err)
	assert.Equal(t, monday, got.Day)
	text, err = m.ToJSON(got)
	require.NoError(t, err)
	assert.Contains(t, text, `"day":"MONDAY"`)
}

func TestBlankInputRejection(t *testing.T) {
	m := New()
	for _, input := range []string{"", "   ", "\n\t"} {
		_, err := m.ToObject(input, reflect.TypeFor[person]())
		requireKind(t, err, pkgerrs.EmptyInput)
		assert.True(t, strings.HasPrefix(err.Error(), "json mapping error (empty input): JSON is blank"), err.Error())

		_, err = m.ToList(input, reflect.TypeFor[person]())
		requireKind(t, err, pkgerrs.EmptyInput)
		assert.ErrorIs(t, err, pkgerrs.ErrEmptyInput)
	}

	_, err := m.ToObject("{", reflect.TypeFor[person]())
	requireKind(t, err, pkgerrs.MalformedJSON)
	assert.NotContains(t, err.Error(), "blank")
}

func TestBlankInputFailsEvenWhenSwallowing(t *testing.T) {
	m := New().Swallowing()
	_, err := Object[person](m, "")
	requireKind(t, err, pkgerrs.EmptyInput)

	_, err = m.ToObject(`{}`, nil)
	requireKind(t, err, pkgerrs.MappingDefinition)
}

func TestRoundTrip(t *testing.T) {
	type comment struct {
		ID      string  `facebook:"id"`
		Message string  `facebook:"message"`
		Likes   int     `facebook:"like_count"`
		Score   float64 `facebook:"score"`
		Hidden  bool    `facebook:"is_hidden"`
		From    *namedObject
		Author  namedObject   `facebook:"from"`
		Replies []namedObject `facebook:"replies"`
		Tags    []string      `facebook:"tags"`
	}

	m := New()
	in := comment{
		ID:      "10_20",
		Message: "hello \"world\" <b>",
		Likes:   42,
		Score:   0.25,
		Hidden:  true,
		Author:  namedObject{UID: 1, Name: "Ann"},
		Replies: []namedObject{{UID: 2, Name: "Bob"}, {UID: 3, Name: "Cy"}},
		Tags:    []string{"a", "b"},
	}

	text, err := m.ToJSON(in)
	require.NoError(t, err)

	out, err := Object[comment](m, text)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestToJSONSkipEmpty(t *testing.T) {
	type doc struct {
		Name  string            `facebook:"name"`
		Tags  []string          `facebook:"tags"`
		Attrs map[string]string `facebook:"attrs"`
		Ref   *namedObject      `facebook:"ref"`
		Note  *string           `facebook:"note,omitempty"`
	}
	m := New()

	text, err := m.ToJSON(doc{Name: "x", Tags: []string{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"x","tags":[],"attrs":null,"ref":null}`, text)

	text, err = m.ToJSON(doc{Name: "x", Tags: []string{}}, SkipEmpty())
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"x"}`, text)
}

func TestToJSONSharedKeyPrefersFirstNonEmpty(t *testing.T) {
	m := New()
	text, err := m.ToJSON(checkin{ID: "1", LocationRaw: `{"city":"Oslo"}`})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","location":"{\"city\":\"Oslo\"}","tags":null}`, text)

	text, err = m.ToJSON(checkin{ID: "1", Location: &place{City: "Oslo"}, LocationRaw: "ignored"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","location":{"city":"Oslo","latitude":0,"longitude":0},"tags":null}`, text)
}

func TestToJSONSortsMapKeysAndWritesEnumNames(t *testing.T) {
	m := New()
	text, err := m.ToJSON(map[string]any{"b": tuesday, "a": []int{1}, "c": nil})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1],"b":"TUESDAY","c":null}`, text)
}

func TestToJSONRejectsUnsupportedKinds(t *testing.T) {
	m := New()
	_, err := m.ToJSON(map[int]string{1: "a"})
	requireKind(t, err, pkgerrs.MappingDefinition)

	_, err = m.ToJSON(func() {})
	requireKind(t, err, pkgerrs.MappingDefinition)
}

func TestSharedKeyRawAndStructured(t *testing.T) {
	m := New()
	got, err := Object[checkin](m, `{"id":"9","location":{"city":"Oslo","latitude":59.9,"longitude":"10.7"},"tags":["x"]}`)
	require.NoError(t, err)

	require.NotNil(t, got.Location)
	assert.Equal(t, "Oslo", got.Location.City)
	assert.InDelta(t, 59.9, got.Location.Latitude, 1e-9)
	assert.InDelta(t, 10.7, got.Location.Longitude, 1e-9)
	assert.JSONEq(t, `{"city":"Oslo","latitude":59.9,"longitude":"10.7"}`, got.LocationRaw)
}

func TestSharedKeyFailureLeavesOnlyThatFieldUnset(t *testing.T) {
	var buf bytes.Buffer
	m := New(WithLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))))

	got, err := Object[checkin](m, `{"id":"9","location":"Oslo, Norway"}`)
	require.NoError(t, err)
	assert.Nil(t, got.Location)
	assert.Equal(t, "Oslo, Norway", got.LocationRaw)
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "field=Location")
}

func TestConversionRules(t *testing.T) {
	m := New()
	text := `{
		"affiliations": [{"uid": "12", "name": "A"}, null],
		"counts": {"likes": 3, "shares": "4"},
		"extra": {"k": [1, 2]},
		"raw": [true, null],
		"anything": {"n": 1.5},
		"score": 123456789012345678901234567890,
		"ratio": "0.125",
		"updated_time": "2012-04-01T10:20:30+0000",
		"verified": "true",
		"small": 300.9,
		"Ignored": "no",
		"untagged": "no",
		"nested": []
	}`

	p, err := Object[profile](m, text)
	require.NoError(t, err)

	require.Len(t, p.Affiliations, 2)
	assert.Equal(t, namedObject{UID: 12, Name: "A"}, p.Affiliations[0])
	assert.Equal(t, namedObject{}, p.Affiliations[1])
	assert.Equal(t, map[string]int{"likes": 3, "shares": 4}, p.Counts)

	items, ok := p.Extra.Path("k")
	require.True(t, ok)
	assert.Equal(t, 2, items.Len())
	assert.JSONEq(t, `[true,null]`, string(p.Raw))
	assert.Equal(t, map[string]any{"n": json.Number("1.5")}, p.Anything)

	require.NotNil(t, p.Score)
	assert.Equal(t, "123456789012345678901234567890", p.Score.String())
	f, _ := p.Ratio.Float64()
	assert.Equal(t, 0.125, f)

	assert.True(t, p.Updated.Equal(time.Date(2012, 4, 1, 10, 20, 30, 0, time.UTC)))
	assert.True(t, p.Verified)
	assert.Equal(t, int8(44), p.Small) // 300 truncated to int8
	assert.Empty(t, p.Ignored)
	assert.Empty(t, p.Untagged)
	require.NotNil(t, p.Nested)
	assert.Empty(t, p.Nested)
}

func TestUnixTimestampDates(t *testing.T) {
	type event struct {
		Start time.Time `facebook:"start_time"`
	}
	got, err := Object[event](New(), `{"start_time": 1333275630}`)
	require.NoError(t, err)
	assert.Equal(t, int64(1333275630), got.Start.Unix())
}

func TestFieldConversionErrorNamesFieldAndValue(t *testing.T) {
	m := New()
	_, err := Object[profile](m, `{"counts": {"likes": "lots"}}`)
	requireKind(t, err, pkgerrs.FieldConversion)

	var me *pkgerrs.MappingError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, `Counts["likes"]`, me.Field)
	assert.Equal(t, "counts", me.Key)
	assert.Contains(t, err.Error(), `"lots"`)
}

func TestNestedFieldPath(t *testing.T) {
	_, err := Object[checkin](New(), `{"tags": [1, {"a": 1}]}`)
	require.NoError(t, err, "strings accept any JSON value")

	type outer struct {
		Where place `facebook:"where"`
	}
	_, err = Object[outer](New(), `{"where": {"latitude": "north"}}`)
	var me *pkgerrs.MappingError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "Where.Latitude", me.Field)
}

func TestTopLevelQuirks(t *testing.T) {
	m := New()

	p, err := Object[*person](m, `false`)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = Object[*person](m, `[]`)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, person{}, *p)

	_, err = Object[person](m, `[{"uid":1}]`)
	requireKind(t, err, pkgerrs.TypeMismatch)
	assert.Contains(t, err.Error(), "map it as a list instead")

	p, err = Object[*person](m, `null`)
	require.NoError(t, err)
	assert.Nil(t, p)

	b, err := Object[bool](m, `false`)
	require.NoError(t, err)
	assert.False(t, b)
}

func TestSwallowedFailuresReachDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	got, err := Object[namedObject](New().Swallowing(), `{"uid":"not a number","name":"n"}`)
	require.NoError(t, err)
	assert.Equal(t, "n", got.Name)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "swallowed JSON field failure")
}

func TestListQuirks(t *testing.T) {
	m := New()

	got, err := List[person](m, `false`)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = List[person](m, `{}`)
	require.NoError(t, err)
	assert.Empty(t, got)

	ptrs, err := List[*person](m, `[{"uid":1}, null]`)
	require.NoError(t, err)
	require.Len(t, ptrs, 2)
	assert.Equal(t, int64(1), ptrs[0].UID)
	assert.Nil(t, ptrs[1])

	_, err = List[person](m, `{"uid":1}`)
	requireKind(t, err, pkgerrs.TypeMismatch)
}

func TestSwallowMode(t *testing.T) {
	var buf bytes.Buffer
	m := New(WithLogger(slog.New(slog.NewTextHandler(&buf, nil)))).Swallowing()
	require.True(t, m.Swallows())

	got, err := List[namedObject](m, `[{"uid":1,"name":"a"},{"uid":"x"},{"uid":3}]`)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].UID)
	assert.Equal(t, namedObject{}, got[1])
	assert.Equal(t, int64(3), got[2].UID)
	assert.Contains(t, buf.String(), "level=WARN")

	whole, err := Object[namedObject](m, `[1,2]`)
	require.NoError(t, err)
	assert.Equal(t, namedObject{}, whole)

	_, err = Object[namedObject](New(), `{"uid":"x"}`)
	requireKind(t, err, pkgerrs.FieldConversion)
}

type completed struct {
	Name   string `facebook:"name"`
	calls  []string
	mapper *Mapper
}

func (c *completed) OnMappingCompleted() { c.calls = append(c.calls, "plain") }

func (c *completed) OnMappingCompletedWithMapper(m *Mapper) {
	c.calls = append(c.calls, "mapper")
	c.mapper = m
}

type overriding struct {
	completed
	Upper string
}

func (o *overriding) OnMappingCompleted() {
	o.Upper = strings.ToUpper(o.Name)
}

type LevelA struct{ A string }

func (l *LevelA) OnMappingCompleted() { l.A = "hooked" }

type LevelB struct{ B string }

func (l *LevelB) OnMappingCompleted() { l.B = "hooked" }

type ambiguous struct {
	LevelA
	LevelB
	Name string `facebook:"name"`
}

func TestMappingHooks(t *testing.T) {
	m := New()

	c, err := Object[completed](m, `{"name":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"plain", "mapper"}, c.calls)
	assert.Same(t, m, c.mapper)

	o, err := Object[overriding](m, `{"name":"abc"}`)
	require.NoError(t, err)
	assert.Equal(t, "ABC", o.Upper)
	assert.Equal(t, []string{"mapper"}, o.calls, "the outer hook replaces the promoted one")

	a, err := Object[ambiguous](m, `{"name":"n"}`)
	require.NoError(t, err)
	assert.Equal(t, "hooked", a.A)
	assert.Equal(t, "hooked", a.B)
}

type HookedBase struct {
	ID    string `facebook:"id"`
	Calls int
}

func (b *HookedBase) OnMappingCompleted() { b.Calls++ }

type pointerEmbedded struct {
	*HookedBase
	Name string `facebook:"name"`
}

func TestMappingHookPromotedThroughEmbeddedPointer(t *testing.T) {
	m := New()

	var got pointerEmbedded
	require.NotPanics(t, func() {
		var err error
		got, err = Object[pointerEmbedded](m, `{"name":"x"}`)
		require.NoError(t, err)
	})
	assert.Equal(t, "x", got.Name)
	require.NotNil(t, got.HookedBase, "the level providing the hook is allocated")
	assert.Equal(t, 1, got.Calls)

	got, err := Object[pointerEmbedded](m, `{"id":"7","name":"y"}`)
	require.NoError(t, err)
	assert.Equal(t, "7", got.ID)
	assert.Equal(t, 1, got.Calls)
}

type badHook struct {
	Name string `facebook:"name"`
}

func (b *badHook) OnMappingCompleted(extra int) {}

type badMapperHook struct {
	Name string `facebook:"name"`
}

func (b *badMapperHook) OnMappingCompletedWithMapper(m *Mapper, extra string) {}

func TestHookSignatureIsDefinitionError(t *testing.T) {
	m := New().Swallowing()

	_, err := Object[badHook](m, `{"name":"x"}`)
	requireKind(t, err, pkgerrs.MappingDefinition)
	assert.Contains(t, err.Error(), "OnMappingCompleted")

	_, err = List[badMapperHook](m, `[{"name":"x"}]`)
	requireKind(t, err, pkgerrs.MappingDefinition)
}

func TestUnsupportedDefinitions(t *testing.T) {
	type intKeys struct {
		M map[int]string `facebook:"m"`
	}
	type hidden struct {
		secret string `facebook:"secret"`
	}
	type channel struct {
		C chan int `facebook:"c"`
	}

	m := New()
	for _, tc := range []struct {
		name string
		run  func() error
	}{
		{"non-string map key", func() error { _, err := Object[intKeys](m, `{"m":{}}`); return err }},
		{"unexported tagged field", func() error { _, err := Object[hidden](m, `{}`); return err }},
		{"channel field", func() error { _, err := Object[channel](m, `{}`); return err }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			requireKind(t, tc.run(), pkgerrs.MappingDefinition)
		})
	}
}

func TestCustomTagName(t *testing.T) {
	type tagged struct {
		ID string `graph:"id"`
	}
	m := New(WithTagName("graph"))
	got, err := Object[tagged](m, `{"id":"5"}`)
	require.NoError(t, err)
	assert.Equal(t, "5", got.ID)
	assert.Equal(t, "graph", m.TagName())
}

func TestMappingDoesNotMutateOnFailure(t *testing.T) {
	m := New()
	got, err := Object[*namedObject](m, `{"uid":"bad","name":"kept?"}`)
	require.Error(t, err)
	assert.Nil(t, got)
}

func TestConcurrentMappingSharesCache(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := Object[employee](m, `{"uid":1,"name":"n","badge":"b"}`)
			assert.NoError(t, err)
			assert.Equal(t, "b", e.Badge)
			_, err = List[checkin](m, `[{"id":"1"}]`)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func requireKind(t *testing.T, err error, kind pkgerrs.MappingErrorKind) {
	t.Helper()
	require.Error(t, err)
	var me *pkgerrs.MappingError
	require.True(t, errors.As(err, &me), "got %T: %v", err, err)
	require.Equal(t, kind, me.Kind, err.Error())
}
