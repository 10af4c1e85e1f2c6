package transaction

import (
	"testing"
	"time"

	"github.com/arloliu/go-zwave/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var versionRequest = frame.New(frame.Request, frame.ClassGetVersion).MustPack()

func TestNew_Defaults(t *testing.T) {
	tx, err := New(versionRequest)
	require.NoError(t, err)

	assert.NotEmpty(t, tx.ID())
	assert.Equal(t, versionRequest, tx.Frame())
	assert.Equal(t, PriorityGet, tx.Priority())
	assert.Equal(t, DefaultAttempts, tx.AttemptsRemaining())
	assert.Equal(t, DefaultAttempts, tx.MaxAttempts())
	assert.Equal(t, DefaultResponseTimeout, tx.Timeout(PhaseResponse))
	assert.Equal(t, DefaultRequestTimeout, tx.Timeout(PhaseRequest))
	assert.Equal(t, DefaultDataTimeout, tx.Timeout(PhaseData))
	assert.Equal(t, time.Duration(0), tx.Timeout(PhaseNone))
	assert.Equal(t, StateQueued, tx.State())
	assert.Equal(t, PhaseNone, tx.NextPhase(PhaseNone))
	assert.Nil(t, tx.FinalFrame())

	_, ok := tx.CallbackID()
	assert.False(t, ok)

	other, err := New(versionRequest)
	require.NoError(t, err)
	assert.NotEqual(t, tx.ID(), other.ID())
}

func TestNew_CopiesFrame(t *testing.T) {
	data := append([]byte{}, versionRequest...)
	tx, err := New(data)
	require.NoError(t, err)

	data[1] = 0xFF
	assert.Equal(t, versionRequest, tx.Frame())
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		opts []Option
		err  error
	}{
		{"empty frame", nil, nil, ErrEmptyFrame},
		{"invalid priority", versionRequest, []Option{WithPriority(Priority(9))}, ErrInvalidPriority},
		{"zero priority", versionRequest, []Option{WithPriority(0)}, ErrInvalidPriority},
		{"zero attempts", versionRequest, []Option{WithAttempts(0)}, ErrInvalidAttempts},
		{"too many attempts", versionRequest, []Option{WithAttempts(MaxAttempts + 1)}, ErrInvalidAttempts},
		{"negative timeout", versionRequest, []Option{WithResponseTimeout(-time.Second)}, ErrInvalidTimeout},
		{"zero timeouts", versionRequest, []Option{WithTimeouts(time.Second, 0, time.Second)}, ErrInvalidTimeout},
		{"request without callback", versionRequest, []Option{WithRequest(frame.ClassAddNodeToNetwork)}, ErrMissingCallbackID},
		{"data without node", versionRequest, []Option{WithData(0x25)}, ErrMissingNode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := New(tt.data, tt.opts...)
			assert.ErrorIs(t, err, tt.err)
			assert.Nil(t, tx)
		})
	}
}

func TestValidate_InvalidPriorityStruct(t *testing.T) {
	tx := &Transaction{frame: versionRequest, attempts: 1}
	assert.ErrorIs(t, tx.Validate(), ErrInvalidPriority)
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 0, PriorityImmediate.Tier())
	assert.Equal(t, 1, PrioritySet.Tier())
	assert.Equal(t, 2, PriorityGet.Tier())
	assert.Equal(t, 3, PriorityPoll.Tier())
	assert.False(t, Priority(0).IsValid())
	assert.Equal(t, "Immediate", PriorityImmediate.String())
	assert.Equal(t, "Priority(7)", Priority(7).String())
}

func TestNextPhase(t *testing.T) {
	tx, err := New(versionRequest,
		WithNode(5),
		WithCallbackID(1),
		WithResponse(frame.ClassSendData),
		WithData(0x9C),
	)
	require.NoError(t, err)

	assert.Equal(t, PhaseResponse, tx.NextPhase(PhaseNone))
	assert.Equal(t, PhaseData, tx.NextPhase(PhaseResponse), "undeclared request phase is skipped")
	assert.Equal(t, PhaseNone, tx.NextPhase(PhaseData))
}

func TestMatches(t *testing.T) {
	tx, err := NewSendData(5, 0x53, []byte{0x9C, 0x01}, WithDataCommand(0x9C, 0x02))
	require.NoError(t, err)

	response := frame.New(frame.Response, frame.ClassSendData, 0x01)
	callback := frame.New(frame.Request, frame.ClassSendData, 0x53, 0x00, 0x00, 0x02)
	otherCallback := frame.New(frame.Request, frame.ClassSendData, 0x08, 0x00, 0x00, 0x02)
	report := frame.ApplicationCommand(0x00, 5, 0x9C, 0x02, 0x05)
	otherCommand := frame.ApplicationCommand(0x00, 5, 0x9C, 0x03, 0x05)
	otherNode := frame.ApplicationCommand(0x00, 2, 0x9C, 0x02, 0x05)
	otherClass := frame.ApplicationCommand(0x00, 5, 0x32, 0x02, 0x05)

	assert.True(t, tx.Matches(PhaseResponse, response))
	assert.False(t, tx.Matches(PhaseResponse, callback), "request frames never satisfy the response phase")

	assert.True(t, tx.Matches(PhaseRequest, callback))
	assert.False(t, tx.Matches(PhaseRequest, otherCallback))
	assert.False(t, tx.Matches(PhaseRequest, response))

	assert.True(t, tx.Matches(PhaseData, report))
	assert.False(t, tx.Matches(PhaseData, otherCommand))
	assert.False(t, tx.Matches(PhaseData, otherNode))
	assert.False(t, tx.Matches(PhaseData, otherClass))

	assert.False(t, tx.Matches(PhaseNone, response))
	assert.False(t, tx.Matches(PhaseData, nil))
}

func TestMatches_DataWithoutCommandFilter(t *testing.T) {
	tx, err := NewSendData(2, 8, []byte{0x32, 0x01}, WithData(0x32))
	require.NoError(t, err)

	assert.True(t, tx.Matches(PhaseData, frame.ApplicationCommand(0x00, 2, 0x32, 0x02)))
	assert.True(t, tx.Matches(PhaseData, frame.ApplicationCommand(0x00, 2, 0x32, 0x05)))
}

func TestLifecycle(t *testing.T) {
	tx, err := NewSendData(5, 0x53, []byte{0x9C, 0x01}, WithData(0x9C), WithAttempts(2))
	require.NoError(t, err)

	now := time.Now()
	assert.False(t, tx.Submitted())
	require.NoError(t, tx.MarkSubmitted(now))
	assert.True(t, tx.Submitted())
	assert.ErrorIs(t, tx.MarkSubmitted(now), ErrAlreadySubmitted)
	assert.Equal(t, now, tx.SubmittedAt())

	phase, err := tx.MarkSent()
	require.NoError(t, err)
	assert.Equal(t, PhaseResponse, phase)
	assert.Equal(t, StateAwaitingResponse, tx.State())
	assert.Equal(t, 1, tx.AttemptsRemaining())
	assert.Equal(t, 1, tx.Sends())

	response := frame.New(frame.Response, frame.ClassSendData, 0x01)
	assert.Equal(t, PhaseRequest, tx.Advance(response))
	assert.Equal(t, StateAwaitingRequest, tx.State())
	assert.Same(t, response, tx.FinalFrame())

	_, err = tx.MarkSent()
	require.ErrorIs(t, err, ErrNotQueued)
	assert.Equal(t, 1, tx.AttemptsRemaining(), "a refused send consumes no attempt")

	tx.Requeue()
	assert.Equal(t, StateQueued, tx.State())

	phase, err = tx.MarkSent()
	require.NoError(t, err)
	assert.Equal(t, PhaseResponse, phase)
	assert.Equal(t, 0, tx.AttemptsRemaining())
	assert.Equal(t, 2, tx.Sends())
	require.NoError(t, tx.Validate(), "validity does not depend on attempts left")

	tx.Fail(PhaseResponse, now)
	assert.Equal(t, StateTimedOut, tx.State())
	assert.Equal(t, PhaseResponse, tx.FailedPhase())
	assert.Equal(t, "timed out awaiting response", tx.StateString())
	assert.True(t, tx.State().IsTerminal())
	assert.Equal(t, now, tx.CompletedAt())
}

func TestLifecycle_NoExpectations(t *testing.T) {
	tx, err := New(versionRequest)
	require.NoError(t, err)

	phase, err := tx.MarkSent()
	require.NoError(t, err)
	assert.Equal(t, PhaseNone, phase)
	assert.Equal(t, StateQueued, tx.State(), "caller completes transactions without expectations")

	tx.Complete(time.Now())
	assert.Equal(t, StateDone, tx.State())

	_, err = tx.MarkSent()
	require.ErrorIs(t, err, ErrNotQueued)
	assert.Equal(t, "Done", tx.StateString())
}

func TestAtomicState(t *testing.T) {
	var st AtomicState
	assert.Equal(t, StateQueued, st.Get())

	assert.True(t, st.Transit(StateQueued, StateAwaitingResponse))
	assert.False(t, st.Transit(StateQueued, StateAwaitingData))
	assert.Equal(t, "AwaitingResponse", st.String())

	assert.Equal(t, PhaseResponse, StateAwaitingResponse.Phase())
	assert.Equal(t, PhaseRequest, StateAwaitingRequest.Phase())
	assert.Equal(t, PhaseData, StateAwaitingData.Phase())
	assert.Equal(t, PhaseNone, StateDone.Phase())
	assert.Equal(t, "Unknown", State(42).String())
}
