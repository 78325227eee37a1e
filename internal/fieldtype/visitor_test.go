package fieldtype_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldline/internal/fieldtype"
)

type multiOnly struct{}

func (multiOnly) VisitMulti(t fieldtype.MultiShape) any { return "multi:" + t.Key() }

type shapeNamer struct{}

func (shapeNamer) VisitSingle(fieldtype.SingleShape) any     { return "single" }
func (shapeNamer) VisitMulti(fieldtype.MultiShape) any       { return "multi" }
func (shapeNamer) VisitComputed(fieldtype.ComputedShape) any { return "computed" }

type fallback struct{}

func (fallback) VisitType(t fieldtype.Descriptor) any { return "any:" + t.Key() }
func (fallback) VisitMulti(fieldtype.MultiShape) any  { return "multi" }

func TestMultiVisitorOnlyMatchesMulti(t *testing.T) {
	fx := newFixture()
	types := map[string]fieldtype.Descriptor{
		"multi":    newTags(fx.opts, false),
		"single":   fieldtype.NewSingle[string]("test-text", "Test text", strCodec{}, fx.opts),
		"computed": newLength(fx.opts),
	}

	res, ok := types["multi"].Accept(multiOnly{})
	require.True(t, ok)
	assert.Equal(t, "multi:test-tags", res)

	_, ok = types["single"].Accept(multiOnly{})
	assert.False(t, ok)
	_, ok = types["computed"].Accept(multiOnly{})
	assert.False(t, ok)
}

func TestVisitorRoutesByShape(t *testing.T) {
	fx := newFixture()
	cases := []struct {
		ft   fieldtype.Descriptor
		want string
	}{
		{fieldtype.NewSingle[string]("s", "S", strCodec{}, fx.opts), "single"},
		{newTags(fx.opts, true), "multi"},
		{newLength(fx.opts), "computed"},
		{fieldtype.Erase[[]string](newTags(fx.opts, true)), "multi"},
	}
	for _, tc := range cases {
		got, ok := fieldtype.Dispatch[string](tc.ft, shapeNamer{})
		require.True(t, ok)
		assert.Equal(t, tc.want, got)
	}
}

func TestTypeVisitorIsLastResort(t *testing.T) {
	fx := newFixture()

	got, ok := fieldtype.Dispatch[string](newTags(fx.opts, false), fallback{})
	require.True(t, ok)
	assert.Equal(t, "multi", got)

	got, ok = fieldtype.Dispatch[string](newLength(fx.opts), fallback{})
	require.True(t, ok)
	assert.Equal(t, "any:test-length", got)
}

func TestDispatchRejectsWrongResultType(t *testing.T) {
	fx := newFixture()
	_, ok := fieldtype.Dispatch[int](newTags(fx.opts, false), multiOnly{})
	assert.False(t, ok)
}

func TestErasedTypeRejectsWrongValueType(t *testing.T) {
	fx := newFixture()
	ft := fieldtype.Erase[string](fieldtype.NewSingle[string]("s", "S", strCodec{}, fx.opts))

	err := ft.CreateValue(context.Background(), fieldF, "R", 12)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fieldtype.ErrIllegalUsage))
	assert.Equal(t, 0, fx.port.calls["create"])

	// nil means no value
	require.NoError(t, ft.SetDefaultValue(context.Background(), cfgA, nil))
	assert.Equal(t, "", ft.ChangelogText(nil))
	assert.True(t, ft.Equal(nil, nil))
	assert.False(t, ft.Equal(nil, "a"))
}

func TestRegistry(t *testing.T) {
	fx := newFixture()
	a := fieldtype.Erase[string](fieldtype.NewSingle[string]("b-type", "B", strCodec{}, fx.opts))
	b := fieldtype.Erase[[]string](fieldtype.NewMulti[string]("a-type", "A", strCodec{}, nil, fx.opts))

	reg, err := fieldtype.NewRegistry(a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-type", "b-type"}, reg.Keys())
	got, ok := reg.Lookup("b-type")
	require.True(t, ok)
	assert.Equal(t, "B", got.Name())

	_, err = fieldtype.NewRegistry(a, a)
	assert.Error(t, err)
}

func TestErrorCollection(t *testing.T) {
	errs := fieldtype.ErrorCollection{}
	assert.NoError(t, errs.Err())
	errs.Add("due", fieldtype.Invalidf("bad date"))
	errs.Add("size", errors.New("too big"))
	require.True(t, errs.HasAnyErrors())
	assert.Equal(t, "bad date", errs["due"])
	assert.Equal(t, "validation failed: due: bad date; size: too big", errs.Err().Error())
}
