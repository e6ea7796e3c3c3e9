package trace

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/markdave123-py/lessontutor/internal/core/apierr"
)

func TestAtReturnsCopy(t *testing.T) {
	root := New("req-1", time.Unix(0, 0))
	quota := root.At("quota")

	assert.Equal(t, "init", root.Stage)
	assert.Equal(t, "quota", quota.Stage)
	assert.Equal(t, []interface{}{"request_id", "req-1", "stage", "quota"}, quota.Fields())
}

func TestTagKeepsExistingStage(t *testing.T) {
	tr := New("req-2", time.Now()).At("persist")

	tagged := tr.Tag(errors.New("write failed"))
	assert.Equal(t, "persist", tagged.Stage)
	assert.Equal(t, http.StatusInternalServerError, tagged.Status)

	pre := apierr.New(http.StatusTooManyRequests, apierr.CodeQuotaExceeded, nil).WithStage("quota")
	assert.Equal(t, "quota", tr.Tag(pre).Stage)
	assert.Nil(t, tr.Tag(nil))
}
