package fieldtype_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldline/internal/fieldtype"
)

func newTags(opts fieldtype.Options, sorted bool) *fieldtype.Multi[string] {
	var less func(a, b string) bool
	if sorted {
		less = func(a, b string) bool { return a < b }
	}
	return fieldtype.NewMulti[string]("test-tags", "Test tags", strCodec{}, less, opts)
}

func TestMultiDeduplicates(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	ft := newTags(fx.opts, false)
	fx.port.seed(fieldG.ID, "R", fieldtype.TextValue("x"), fieldtype.TextValue("x"), fieldtype.TextValue("y"))

	v, ok, err := ft.ValueForRecord(ctx, fieldG, "R")
	require.NoError(t, err)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"x", "y"}, v)
}

func TestMultiSortsWhenOrdered(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	ft := newTags(fx.opts, true)
	fx.port.seed(fieldG.ID, "R", fieldtype.TextValue("c"), fieldtype.TextValue("a"), fieldtype.TextValue("b"), fieldtype.TextValue("a"))

	first, _, err := ft.ValueForRecord(ctx, fieldG, "R")
	require.NoError(t, err)
	second, _, err := ft.ValueForRecord(ctx, fieldG, "R")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, first)
	assert.Equal(t, first, second)
	assert.True(t, ft.Ordered())
}

func TestMultiNoRowsIsNone(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	ft := newTags(fx.opts, false)

	v, ok, err := ft.ValueForRecord(ctx, fieldG, "R")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestMultiDropsUnconvertibleElements(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	ft := newTags(fx.opts, true)
	fx.port.seed(fieldG.ID, "R", fieldtype.TextValue("ok"), fieldtype.NumberValue(3))

	v, ok, err := ft.ValueForRecord(ctx, fieldG, "R")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"ok"}, v)
	assert.Contains(t, fx.log.String(), "dropping stored element")
}

func TestMultiWritesWholeSetInOneCall(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	ft := newTags(fx.opts, true)

	require.NoError(t, ft.CreateValue(ctx, fieldG, "R", []string{"b", "", "a"}))
	assert.Equal(t, 1, fx.port.calls["create"])
	assert.Len(t, fx.port.rows[rowKey(fieldG.ID, "R")], 2)

	require.NoError(t, ft.UpdateValue(ctx, fieldG, "R", []string{"z"}))
	assert.Equal(t, 1, fx.port.calls["update"])
	v, _, err := ft.ValueForRecord(ctx, fieldG, "R")
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, v)
}

func TestMultiDefaultValue(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	ft := newTags(fx.opts, true)

	require.NoError(t, ft.SetDefaultValue(ctx, cfgA, []string{"q", "p"}))
	v, ok, err := ft.DefaultValue(ctx, cfgA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"p", "q"}, v)

	// a set with nothing storable clears the default
	require.NoError(t, ft.SetDefaultValue(ctx, cfgA, []string{""}))
	_, ok, err = ft.DefaultValue(ctx, cfgA)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, fx.port.defaults)
}

func TestMultiChangelogKeepsGivenOrder(t *testing.T) {
	fx := newFixture()
	ft := newTags(fx.opts, true)

	assert.Equal(t, "c, a, b", ft.ChangelogText([]string{"c", "a", "b"}))
	assert.Equal(t, "", ft.ChangelogText(nil))
}

func TestMultiTextRoundTrip(t *testing.T) {
	fx := newFixture()
	ft := newTags(fx.opts, false)

	v, err := ft.FromText(" a , b,,a ")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v)
	assert.Equal(t, "a,b", ft.ToText(v))

	_, err = ft.FromText("fine,bad!")
	var ve *fieldtype.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestMultiEqualIgnoresOrder(t *testing.T) {
	fx := newFixture()
	ft := newTags(fx.opts, false)

	assert.True(t, ft.Equal([]string{"a", "b"}, []string{"b", "a"}))
	assert.False(t, ft.Equal([]string{"a"}, []string{"a", "b"}))
	assert.False(t, ft.Equal(nil, []string{}))
	assert.True(t, ft.Equal(nil, nil))
}

func TestMultiRemoveElement(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	ft := newTags(fx.opts, true)
	fx.port.seed(fieldG.ID, "R1", fieldtype.TextValue("a"), fieldtype.TextValue("b"))
	fx.port.seed(fieldG.ID, "R2", fieldtype.TextValue("b"))
	fx.port.seed(fieldG.ID, "R3", fieldtype.TextValue("c"))

	affected, err := ft.RemoveElementText(ctx, fieldG, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"R1", "R2"}, affected.Sorted())

	v, _, err := ft.ValueForRecord(ctx, fieldG, "R1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, v)
}

func TestMultiRemoveReturnsAffectedRecords(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	ft := newTags(fx.opts, false)
	fx.port.seed(fieldG.ID, "R1", fieldtype.TextValue("a"))
	fx.port.seed(fieldG.ID, "R2", fieldtype.TextValue("b"))
	fx.port.seed(fieldF.ID, "R3", fieldtype.TextValue("c"))

	affected, err := ft.Remove(ctx, fieldG)
	require.NoError(t, err)
	assert.Equal(t, []string{"R1", "R2"}, affected.Sorted())
	assert.Len(t, fx.port.rows, 1)
}

func TestMultiElementTexts(t *testing.T) {
	fx := newFixture()
	ft := newTags(fx.opts, false)

	got, ok := ft.ElementTexts([]string{"a,b", "c"})
	require.True(t, ok)
	assert.Equal(t, []string{"a,b", "c"}, got)

	_, ok = ft.ElementTexts("a")
	assert.False(t, ok)
}
