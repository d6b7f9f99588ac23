package model_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"github.com/secmon-lab/ragguard/pkg/domain/types"
)

func TestHistory(t *testing.T) {
	t.Run("append keeps chronological order", func(t *testing.T) {
		h := model.NewHistory()
		gt.NoError(t, h.Append(model.Turn{Role: types.RoleUser, Content: "q1"})).Required()
		gt.NoError(t, h.Append(model.Turn{Role: types.RoleAssistant, Content: "a1"})).Required()
		gt.NoError(t, h.Append(model.Turn{Role: types.RoleUser, Content: "q2"})).Required()

		seq := h.Sequence()
		gt.Array(t, seq).Length(3).Required()
		gt.Value(t, seq[0].Content).Equal("q1")
		gt.Value(t, seq[1].Content).Equal("a1")
		gt.Value(t, seq[2].Content).Equal("q2")
	})

	t.Run("sequence is a copy", func(t *testing.T) {
		h := model.NewHistory(model.Turn{Role: types.RoleUser, Content: "q1"})
		seq := h.Sequence()
		seq[0].Content = "tampered"

		gt.Value(t, h.Sequence()[0].Content).Equal("q1")
	})

	t.Run("seed slice is not aliased", func(t *testing.T) {
		seed := []model.Turn{{Role: types.RoleUser, Content: "q1"}}
		h := model.NewHistory(seed...)
		seed[0].Content = "tampered"

		gt.Value(t, h.Sequence()[0].Content).Equal("q1")
	})

	t.Run("rejects invalid role", func(t *testing.T) {
		h := model.NewHistory()
		err := h.Append(model.Turn{Role: types.Role("system"), Content: "x"})
		gt.Bool(t, errors.Is(err, model.ErrInvalidArgument)).True()
		gt.Value(t, h.Len()).Equal(0)
	})

	t.Run("concurrent appends are serialized", func(t *testing.T) {
		h := model.NewHistory()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = h.Append(model.Turn{Role: types.RoleUser, Content: fmt.Sprintf("q%d", i)})
			}(i)
		}
		wg.Wait()

		gt.Value(t, h.Len()).Equal(50)
	})
	t.Run("exchange is held by one caller at a time", func(t *testing.T) {
		h := model.NewHistory()
		release := h.Exchange()

		acquired := make(chan struct{})
		go func() {
			defer h.Exchange()()
			close(acquired)
		}()

		select {
		case <-acquired:
			t.Fatal("exchange acquired while held")
		case <-time.After(50 * time.Millisecond):
		}

		release()
		select {
		case <-acquired:
		case <-time.After(time.Second):
			t.Fatal("exchange not acquired after release")
		}
	})
}
