package txmgr

import (
	"testing"

	"github.com/arloliu/go-zwave/frame"
	"github.com/arloliu/go-zwave/transaction"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockController struct {
	mock.Mock
}

func (c *mockController) SendFrame(data []byte) {
	c.Called(data)
}

func (c *mockController) TransactionComplete(tx *transaction.Transaction, final *frame.Frame) {
	c.Called(tx, final)
}

func TestManager_ReportsExactlyOnce(t *testing.T) {
	require := require.New(t)

	tx, err := transaction.NewSendData(5, 0x53, []byte{0x9C, 0x01}, transaction.WithData(0x9C))
	require.NoError(err)

	resp := parseFrame(t, sendDataResponse)
	cb := parseFrame(t, sendDataCallback83)
	data := parseFrame(t, alarmReportNode5)

	ctrl := &mockController{}
	ctrl.On("SendFrame", tx.Frame()).Return().Once()
	ctrl.On("TransactionComplete", tx, data).Return().Once()

	m, err := New(ctrl)
	require.NoError(err)
	defer m.Close()

	_, err = m.Submit(tx)
	require.NoError(err)

	for _, f := range []*frame.Frame{resp, cb, data, data, cb, resp} {
		m.OnFrameReceived(f)
	}

	ctrl.AssertExpectations(t)
	ctrl.AssertNumberOfCalls(t, "SendFrame", 1)
	ctrl.AssertNumberOfCalls(t, "TransactionComplete", 1)
	require.Equal(uint64(3), m.GetMetrics().UnmatchedFrameCount.Load())
}
