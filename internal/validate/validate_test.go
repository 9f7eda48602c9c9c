package validate

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neverinfamous/mysql-mcp-go/internal/dberrors"
)

func TestValidate_RequiredFieldMissing(t *testing.T) {
	d := Descriptor{{Name: "table", Kind: KindString, Required: true}}
	err := Validate(d, map[string]interface{}{})
	require.Error(t, err)
	assert.True(t, dberrors.Is(err, dberrors.KindValidation))
	assert.Contains(t, err.Error(), `"table"`)
}

func TestValidate_OptionalFieldAbsentIsFine(t *testing.T) {
	d := Descriptor{{Name: "limit", Kind: KindInt}}
	require.NoError(t, Validate(d, map[string]interface{}{}))
}

func TestValidate_UnknownKeysAreIgnored(t *testing.T) {
	d := Descriptor{{Name: "table", Kind: KindString, Required: true}}
	require.NoError(t, Validate(d, map[string]interface{}{"table": "widgets", "extra": 1}))
}

func TestValidate_StringEnum(t *testing.T) {
	d := Descriptor{{Name: "isolation", Kind: KindString, Enum: []string{"READ COMMITTED", "SERIALIZABLE"}}}
	require.NoError(t, Validate(d, map[string]interface{}{"isolation": "SERIALIZABLE"}))

	err := Validate(d, map[string]interface{}{"isolation": "BOGUS"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be one of")
}

func TestValidate_StringPattern(t *testing.T) {
	d := Descriptor{{Name: "name", Kind: KindString, Pattern: regexp.MustCompile(`^[a-z_]+$`)}}
	require.NoError(t, Validate(d, map[string]interface{}{"name": "widgets"}))
	require.Error(t, Validate(d, map[string]interface{}{"name": "Widgets; DROP TABLE x"}))
}

func TestValidate_StringMinMaxLength(t *testing.T) {
	d := Descriptor{{Name: "name", Kind: KindString, HasMin: true, Min: 2, HasMax: true, Max: 4}}
	require.NoError(t, Validate(d, map[string]interface{}{"name": "abc"}))
	require.Error(t, Validate(d, map[string]interface{}{"name": "a"}))
	require.Error(t, Validate(d, map[string]interface{}{"name": "abcde"}))
}

func TestValidate_IntBounds(t *testing.T) {
	d := Descriptor{{Name: "limit", Kind: KindInt, HasMin: true, Min: 1, HasMax: true, Max: 100}}
	require.NoError(t, Validate(d, map[string]interface{}{"limit": float64(50)}))
	require.Error(t, Validate(d, map[string]interface{}{"limit": float64(0)}))
	require.Error(t, Validate(d, map[string]interface{}{"limit": float64(101)}))
	require.Error(t, Validate(d, map[string]interface{}{"limit": "not a number"}))
}

func TestValidate_Bool(t *testing.T) {
	d := Descriptor{{Name: "unique", Kind: KindBool}}
	require.NoError(t, Validate(d, map[string]interface{}{"unique": true}))
	require.Error(t, Validate(d, map[string]interface{}{"unique": "true"}))
}

func TestValidate_StringSlice(t *testing.T) {
	d := Descriptor{{Name: "columns", Kind: KindStringSlice, Required: true}}
	require.NoError(t, Validate(d, map[string]interface{}{"columns": []interface{}{"a", "b"}}))
	require.Error(t, Validate(d, map[string]interface{}{"columns": []interface{}{"a", 2}}))
	require.Error(t, Validate(d, map[string]interface{}{"columns": "a,b"}))
}
