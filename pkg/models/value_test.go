package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value Value
	}{
		{name: "string", value: StringValue("hello")},
		{name: "int", value: IntValue(42)},
		{name: "float", value: FloatValue(20.5)},
		{name: "string list", value: StringListValue([]string{"a", "b"})},
		{name: "empty string list", value: StringListValue(nil)},
		{name: "map", value: MapValue(map[string]Value{"k": StringValue("v")})},
		{name: "empty map", value: MapValue(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.value)
			require.NoError(t, err)

			var decoded Value

			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, tt.value.Kind, decoded.Kind)
			assert.Equal(t, tt.value.Plain(), decoded.Plain())
		})
	}
}

func TestValue_EmptyCollectionsStayPresent(t *testing.T) {
	data, err := json.Marshal(StringListValue(nil))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"list":[]`)

	data, err = json.Marshal(MapValue(nil))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"map":{}`)

	// Documents written before the payload field was mandatory decode to
	// empty collections, never nil.
	var v Value

	require.NoError(t, json.Unmarshal([]byte(`{"kind":"string_list"}`), &v))
	assert.Equal(t, []string{}, v.List)

	require.NoError(t, json.Unmarshal([]byte(`{"kind":"map"}`), &v))
	assert.Equal(t, map[string]Value{}, v.Map)
}

func TestValue_UnmarshalRejectsUnknownKind(t *testing.T) {
	var v Value

	err := json.Unmarshal([]byte(`{"kind":"blob","str":"x"}`), &v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown value kind")
}

func TestValue_Display(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{name: "string", value: StringValue("/tmp/log"), want: "/tmp/log"},
		{name: "int", value: IntValue(7), want: "7"},
		{name: "float", value: FloatValue(20), want: "20"},
		{name: "list summarized by count", value: StringListValue([]string{"a", "b", "c"}), want: "3 items"},
		{name: "map summarized by count", value: MapValue(map[string]Value{"k": IntValue(1)}), want: "1 entries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.Display())
		})
	}
}

func TestValue_NumericCoercion(t *testing.T) {
	assert.Equal(t, int64(20), FloatValue(20.4).AsInt())
	assert.InDelta(t, 42.0, IntValue(42).AsFloat(), 0.0001)
	assert.Equal(t, int64(0), StringValue("42").AsInt())
}

func TestValue_CollectionHelpers(t *testing.T) {
	list := StringListValue([]string{"x", "y"})

	assert.True(t, list.IsCollection())
	assert.Equal(t, 2, list.Len())
	assert.False(t, StringValue("x").IsCollection())
	assert.Equal(t, 0, IntValue(3).Len())
}

func TestMergeValues_OverwritesOnConflict(t *testing.T) {
	dst := map[string]Value{
		"keep":    StringValue("old"),
		"replace": IntValue(1),
	}

	merged := MergeValues(dst, map[string]Value{
		"replace": IntValue(2),
		"new":     StringValue("fresh"),
	})

	assert.Equal(t, int64(2), merged["replace"].AsInt())
	assert.Equal(t, "old", merged["keep"].AsString())
	assert.Equal(t, "fresh", merged["new"].AsString())
}

func TestMergeValues_AllocatesNilDestination(t *testing.T) {
	merged := MergeValues(nil, map[string]Value{"k": StringValue("v")})

	require.NotNil(t, merged)
	assert.Equal(t, "v", merged["k"].AsString())
}

func TestRunContext_CursorHelpers(t *testing.T) {
	rc := NewRunContext("run-1", "scene_analysis", nil, []string{"a", "b", "c"}, time.Now().UTC())

	assert.Equal(t, "a", rc.CurrentStep())
	assert.Equal(t, []string{"a", "b", "c"}, rc.RemainingSteps())

	rc.CurrentStepIndex = 2
	assert.Equal(t, "c", rc.CurrentStep())
	assert.Equal(t, []string{"c"}, rc.RemainingSteps())

	rc.CurrentStepIndex = 3
	assert.Equal(t, "", rc.CurrentStep())
	assert.Empty(t, rc.RemainingSteps())
}

func TestRunContext_LookupPrefersGlobalData(t *testing.T) {
	rc := NewRunContext("run-1", "scene_analysis", map[string]Value{
		"log_path": StringValue("/from/params"),
	}, []string{"a"}, time.Now().UTC())

	v, ok := rc.Lookup("log_path")
	require.True(t, ok)
	assert.Equal(t, "/from/params", v.AsString())

	rc.GlobalData["log_path"] = StringValue("/from/global")

	v, ok = rc.Lookup("log_path")
	require.True(t, ok)
	assert.Equal(t, "/from/global", v.AsString())

	_, ok = rc.Lookup("missing")
	assert.False(t, ok)
}
