package mpesa

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0712345678", "254712345678"},
		{"254712345678", "254712345678"},
		{"+254 712 345 678", "254712345678"},
		{"712345678", "254712345678"},
		{"0110123456", "254110123456"},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got)
	}

	for _, bad := range []string{"", "12345", "0712", "4412345678901"} {
		_, err := NormalizePhone(bad)
		require.Error(t, err, bad)
	}
}

const sampleCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 1500.00},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254708374149}
        ]
      }
    }
  }
}`

func TestCallbackParsing(t *testing.T) {
	var cb Callback
	require.NoError(t, json.Unmarshal([]byte(sampleCallback), &cb))

	require.Equal(t, "ws_CO_191220191020363925", cb.Body.STKCallback.CheckoutRequestID)
	require.Equal(t, 0, cb.Body.STKCallback.ResultCode)
	require.Equal(t, "NLJ7RT61SV", cb.Receipt())
	require.Equal(t, int64(150000), cb.AmountCents())
}

func TestCallbackWithoutMetadata(t *testing.T) {
	raw := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`
	var cb Callback
	require.NoError(t, json.Unmarshal([]byte(raw), &cb))

	require.Equal(t, 1032, cb.Body.STKCallback.ResultCode)
	require.Empty(t, cb.Receipt())
	require.Zero(t, cb.AmountCents())
}

func TestStatusResponse(t *testing.T) {
	require.True(t, StatusResponse{ResultCode: "0"}.Succeeded())
	require.False(t, StatusResponse{ResultCode: "1032"}.Succeeded())
	require.True(t, StatusResponse{}.Pending())
	require.True(t, StatusResponse{ResultCode: "500.001.1001"}.Pending())
	require.False(t, StatusResponse{ResultCode: "1032"}.Pending())
}
