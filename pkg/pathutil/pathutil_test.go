package pathutil_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/remedy-project/remedy/pkg/errclass"
	"github.com/remedy-project/remedy/pkg/pathutil"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"backslashes", `src\app\main.go`, "src/app/main.go"},
		{"leading dot slash", "./src/main.go", "src/main.go"},
		{"double slashes", "src//app///main.go", "src/app/main.go"},
		{"already clean", "src/main.go", "src/main.go"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pathutil.Normalize(tt.in))
		})
	}
}

func TestValidateTag(t *testing.T) {
	assert.NoError(t, pathutil.ValidateTag("keep-forever"))
	assert.NoError(t, pathutil.ValidateTag("release_1.2"))
	assert.Error(t, pathutil.ValidateTag(""))
	assert.Error(t, pathutil.ValidateTag("has space"))
	assert.Error(t, pathutil.ValidateTag("has/slash"))
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, pathutil.ValidateName("null-safety-fix"))
	assert.Error(t, pathutil.ValidateName(""))
	assert.Error(t, pathutil.ValidateName("../escape"))
	assert.Error(t, pathutil.ValidateName("a/b"))

	err := pathutil.ValidateName("bad name")
	assert.True(t, errors.Is(err, errclass.ErrNameInvalid))
}

func TestValidatePathSafety(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, pathutil.ValidatePathSafety(root, filepath.Join(root, "src", "main.go")))
	assert.NoError(t, pathutil.ValidatePathSafety(root, root))

	err := pathutil.ValidatePathSafety(root, filepath.Join(root, "..", "outside.txt"))
	assert.True(t, errors.Is(err, errclass.ErrPathEscape))
}
