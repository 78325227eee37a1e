package fieldtype_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldline/internal/domain"
	"fieldline/internal/fieldtype"
)

type intCodec struct{}

func (intCodec) ToText(v int) string { return strconv.Itoa(v) }

func (intCodec) FromText(text string) (int, error) {
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fieldtype.Invalidf("not an integer")
	}
	return n, nil
}

func newLength(opts fieldtype.Options) *fieldtype.Computed[int] {
	derive := func(_ context.Context, _ domain.Field, recordID string) (int, bool, error) {
		return len(recordID), true, nil
	}
	return fieldtype.NewComputed[int]("test-length", "Record id length", intCodec{}, derive, opts)
}

func TestComputedNeverTouchesPersistence(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	ft := newLength(fx.opts)

	require.NoError(t, ft.CreateValue(ctx, fieldF, "R", 9))
	require.NoError(t, ft.UpdateValue(ctx, fieldF, "R", 9))
	require.NoError(t, ft.ClearValue(ctx, fieldF, "R"))
	require.NoError(t, ft.SetDefaultValue(ctx, cfgA, 9))
	require.NoError(t, ft.ClearDefaultValue(ctx, cfgA))
	_, ok, err := ft.DefaultValue(ctx, cfgA)
	require.NoError(t, err)
	assert.False(t, ok)
	affected, err := ft.Remove(ctx, fieldF)
	require.NoError(t, err)
	assert.Equal(t, 0, affected.Len())

	assert.Equal(t, 0, fx.port.total())
}

func TestComputedDerivesOnRead(t *testing.T) {
	fx := newFixture()
	ft := newLength(fx.opts)

	v, ok, err := ft.ValueForRecord(context.Background(), fieldF, "REC-12")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 6, v)
	assert.Equal(t, "6", ft.ChangelogText(v))
	assert.Equal(t, 0, fx.port.total())
}
