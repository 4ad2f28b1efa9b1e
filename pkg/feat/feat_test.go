package feat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnify(t *testing.T) {
	tests := []struct {
		name   string
		a, b   FeatStruct
		strict bool
		want   FeatStruct
		wantOK bool
	}{
		{"disjoint", FeatStruct{"num": "sg"}, FeatStruct{"per": 3}, false, FeatStruct{"num": "sg", "per": 3}, true},
		{"compatible", FeatStruct{"num": "sg"}, FeatStruct{"num": "sg"}, false, FeatStruct{"num": "sg"}, true},
		{"conflict", FeatStruct{"num": "sg"}, FeatStruct{"num": "pl"}, false, nil, false},
		{"nil both", nil, nil, false, FeatStruct{}, true},
		{"absent true loose", FeatStruct{}, FeatStruct{"refl": true}, false, FeatStruct{"refl": true}, true},
		{"absent true strict", FeatStruct{}, FeatStruct{"refl": true}, true, nil, false},
		{"present true strict", FeatStruct{"refl": true}, FeatStruct{"refl": true}, true, FeatStruct{"refl": true}, true},
		{"false strict", FeatStruct{}, FeatStruct{"refl": false}, true, FeatStruct{"refl": false}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Unify(tt.a, tt.b, tt.strict)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestUnify_DoesNotModifyArguments(t *testing.T) {
	a := FeatStruct{"num": "sg"}
	_, ok := Unify(a, FeatStruct{"per": 1}, false)
	require.True(t, ok)
	assert.Len(t, a, 1)
}

func TestUnifyAll(t *testing.T) {
	got, ok := UnifyAll(FeatStruct{"a": 1}, nil, FeatStruct{"b": 2})
	require.True(t, ok)
	assert.Equal(t, "[a=1,b=2]", got.String())

	_, ok = UnifyAll(FeatStruct{"a": 1}, FeatStruct{"a": 2})
	assert.False(t, ok)
}

func TestAgree_Directional(t *testing.T) {
	source := FeatStruct{"tns": "prt", "num": "sg"}
	target := FeatStruct{"tns": "prs", "gen": "m"}

	got := Agree(source, target, []Pair{{Source: "tns", Target: "tns"}, {Source: "per", Target: "per"}})

	assert.Equal(t, "[gen=m,tns=prt]", got.String(), "target takes source values")
	assert.Equal(t, "prs", target["tns"], "inputs untouched")
	assert.Equal(t, "prt", source["tns"])
}

func TestMutualAgree(t *testing.T) {
	pairs := []Pair{{Source: "num", Target: "num"}, {Source: "gen", Target: "g"}}

	a, b, ok := MutualAgree(FeatStruct{"num": "pl"}, FeatStruct{"g": "f"}, pairs)
	require.True(t, ok)
	assert.Equal(t, "[gen=f,num=pl]", a.String(), "values flow both ways")
	assert.Equal(t, "[g=f,num=pl]", b.String())

	_, _, ok = MutualAgree(FeatStruct{"num": "pl"}, FeatStruct{"num": "sg"}, pairs)
	assert.False(t, ok)
}

func TestMergePairs(t *testing.T) {
	got, ok := MergePairs([]Pair{{"num", "num"}}, nil, []Pair{{"num", "num"}, {"per", "per"}})
	require.True(t, ok)
	assert.Equal(t, []Pair{{"num", "num"}, {"per", "per"}}, got)

	_, ok = MergePairs([]Pair{{"num", "num"}}, []Pair{{"num", "cnt"}})
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, FeatStruct{"a": "x", "b": 2, "c": true}.Validate())
	assert.Error(t, FeatStruct{"a": []any{1}}.Validate())
}
