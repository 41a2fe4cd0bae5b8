package synckit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResourceStates(t *testing.T) {
	loading := Loading[int]()
	assert.True(t, loading.IsLoading())
	assert.False(t, loading.IsSuccess())
	assert.False(t, loading.IsError())

	ok := Success(42)
	assert.True(t, ok.IsSuccess())
	assert.Equal(t, 42, ok.Data())
	assert.NoError(t, ok.Err())

	boom := errors.New("boom")
	failed := Failure[int](boom)
	assert.True(t, failed.IsError())
	assert.Equal(t, boom, failed.Err())
	assert.Zero(t, failed.Data())
}

func TestFailureWithNilError(t *testing.T) {
	r := Failure[string](nil)
	assert.True(t, r.IsError())
	assert.Error(t, r.Err())
}

func TestResourceMatch(t *testing.T) {
	var got string
	match := func(r Resource[int]) string {
		got = ""
		r.Match(
			func() { got = "loading" },
			func(v int) { got = "success" },
			func(err error) { got = "error: " + err.Error() },
		)
		return got
	}

	assert.Equal(t, "loading", match(Loading[int]()))
	assert.Equal(t, "success", match(Success(1)))
	assert.Equal(t, "error: x", match(Failure[int](errors.New("x"))))
}

func TestFoldAndMap(t *testing.T) {
	describe := func(r Resource[[]string]) string {
		return Fold(r,
			func() string { return "..." },
			func(v []string) string { return "items" },
			func(err error) string { return err.Error() },
		)
	}
	assert.Equal(t, "...", describe(Loading[[]string]()))
	assert.Equal(t, "items", describe(Success([]string{"a"})))
	assert.Equal(t, "nope", describe(Failure[[]string](errors.New("nope"))))

	n := MapResource(Success([]string{"a", "b"}), func(v []string) int { return len(v) })
	assert.Equal(t, 2, n.Data())

	assert.True(t, MapResource(Loading[[]string](), func(v []string) int { return len(v) }).IsLoading())

	err := errors.New("kept")
	mapped := MapResource(Failure[[]string](err), func(v []string) int { return len(v) })
	assert.Equal(t, err, mapped.Err())
}
