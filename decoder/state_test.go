package decoder

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/ieee0824/ctcdecode-go/ctcerr"
)

func TestStateLifecycle(t *testing.T) {
	d := newDecoder(t, letterVocab(t), widthConfig(20))
	ctx := context.Background()
	st := d.NewState()
	if st.Status() != Fresh {
		t.Fatalf("status = %v, want fresh", st.Status())
	}
	if _, err := d.DecodeStream(ctx, st, probsSeq1, true); err != nil {
		t.Fatal(err)
	}
	if st.Status() != Finalized {
		t.Fatalf("status = %v, want finalized", st.Status())
	}

	if err := st.Reset(); err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	if st.Status() != Fresh || st.Timestep() != 0 || st.BeamSize() != 1 {
		t.Errorf("after reset: status=%v timestep=%d beam=%d", st.Status(), st.Timestep(), st.BeamSize())
	}
	hyps, err := d.DecodeStream(ctx, st, probsSeq2, true)
	if err != nil {
		t.Fatal(err)
	}
	if hyps[0].Text != "b'a" {
		t.Errorf("best after reset = %q, want b'a", hyps[0].Text)
	}

	if err := st.Destroy(); err != nil {
		t.Fatalf("Destroy error: %v", err)
	}
	if err := st.Destroy(); !errors.Is(err, ErrDestroyed) {
		t.Errorf("second Destroy: err = %v, want ErrDestroyed", err)
	}
	if err := st.Reset(); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Reset after Destroy: err = %v, want ErrDestroyed", err)
	}
	if _, err := d.DecodeStream(ctx, st, probsSeq1, true); !errors.Is(err, ErrDestroyed) {
		t.Errorf("decode after Destroy: err = %v, want ErrDestroyed", err)
	}
}

func TestStateBusy(t *testing.T) {
	d := newDecoder(t, letterVocab(t), widthConfig(4))
	st := d.NewState()
	defer st.Destroy()
	if err := st.acquire(); err != nil {
		t.Fatal(err)
	}
	if _, err := d.DecodeStream(context.Background(), st, probsSeq1, false); !errors.Is(err, ErrBusy) {
		t.Errorf("err = %v, want ErrBusy", err)
	}
	if err := st.Reset(); !errors.Is(err, ErrBusy) {
		t.Errorf("Reset: err = %v, want ErrBusy", err)
	}
	st.release()
	if _, err := d.DecodeStream(context.Background(), st, probsSeq1, false); err != nil {
		t.Errorf("after release: %v", err)
	}
}

func TestStateProgressDuringDecode(t *testing.T) {
	v := digitVocab(t, 6, 5)
	d := newDecoder(t, v, widthConfig(16))
	probs := randomProbs(rand.New(rand.NewSource(3)), 400, 6)
	st := d.NewState()
	defer st.Destroy()

	done := make(chan error, 1)
	go func() {
		_, err := d.DecodeStream(context.Background(), st, probs, false)
		done <- err
	}()

	last := 0
	for running := true; running; {
		select {
		case err := <-done:
			if err != nil {
				t.Fatal(err)
			}
			running = false
		default:
		}
		ts, size := st.Timestep(), st.BeamSize()
		if ts < last || ts > len(probs) {
			t.Fatalf("timestep went from %d to %d", last, ts)
		}
		if size < 0 || size > 16 {
			t.Fatalf("beam size %d outside [0,16]", size)
		}
		last = ts
	}
	if st.Timestep() != len(probs) {
		t.Errorf("timestep = %d, want %d", st.Timestep(), len(probs))
	}
	if st.BeamSize() == 0 || st.BeamSize() > 16 {
		t.Errorf("beam size = %d", st.BeamSize())
	}
}

func TestNilState(t *testing.T) {
	d := newDecoder(t, letterVocab(t), widthConfig(4))
	var st *State
	if _, err := d.DecodeStream(context.Background(), st, probsSeq1, true); !errors.Is(err, ErrNilState) {
		t.Errorf("err = %v, want ErrNilState", err)
	}
	if err := st.Destroy(); !errors.Is(err, ctcerr.ErrState) {
		t.Errorf("Destroy: err = %v, want state error", err)
	}
}

func TestStateIDs(t *testing.T) {
	d := newDecoder(t, letterVocab(t), widthConfig(4))
	a, b := d.NewState(), d.NewState()
	if a.ID() == b.ID() {
		t.Error("states share an id")
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		s    Status
		want string
	}{
		{Fresh, "fresh"},
		{Active, "active"},
		{Finalized, "finalized"},
		{Destroyed, "destroyed"},
		{Status(9), "Status(9)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
