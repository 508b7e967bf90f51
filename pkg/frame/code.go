package frame

// Code is a protocol command code. Codes below 0x8000 originate from the
// controller ("sender"); codes at 0x8000 and above originate from the
// device ("receiver").
type Code uint16

const (
	// CodeDeviceInfo requests device info; the response carries the remote
	// nonce the session key is derived from.
	CodeDeviceInfo Code = 0x0000

	// CodePair sends the pairing request sealed with the login key.
	CodePair Code = 0x0001

	// CodeSendDatapoints writes datapoint values to the device.
	CodeSendDatapoints Code = 0x0002

	// CodeDeviceStatus requests a full datapoint status report. Also used
	// as the probe confirming the negotiated session key.
	CodeDeviceStatus Code = 0x0003

	// CodeUnbind asks the device to forget its binding.
	CodeUnbind Code = 0x0005

	// CodeDeviceReset factory-resets the device.
	CodeDeviceReset Code = 0x0006

	// CodeReceiveDatapoints is a device push of datapoint values.
	CodeReceiveDatapoints Code = 0x8001

	// CodeReceiveTimeDatapoints is a device push with a timestamp prefix.
	CodeReceiveTimeDatapoints Code = 0x8003

	// CodeReceiveSignedDatapoints is a device push with a DP sequence
	// number and flags that must be echoed in the acknowledgement.
	CodeReceiveSignedDatapoints Code = 0x8004

	// CodeReceiveSignedTimeDatapoints combines the signed and timestamped
	// push forms.
	CodeReceiveSignedTimeDatapoints Code = 0x8005

	// CodeTimeRequestMillis asks the controller for wall time as a
	// millisecond string plus timezone offset.
	CodeTimeRequestMillis Code = 0x8011

	// CodeTimeRequestFields asks the controller for wall time as packed
	// calendar fields.
	CodeTimeRequestFields Code = 0x8012
)

// String returns the code name.
func (c Code) String() string {
	switch c {
	case CodeDeviceInfo:
		return "DEVICE_INFO"
	case CodePair:
		return "PAIR"
	case CodeSendDatapoints:
		return "SEND_DPS"
	case CodeDeviceStatus:
		return "DEVICE_STATUS"
	case CodeUnbind:
		return "UNBIND"
	case CodeDeviceReset:
		return "DEVICE_RESET"
	case CodeReceiveDatapoints:
		return "RECEIVE_DPS"
	case CodeReceiveTimeDatapoints:
		return "RECEIVE_TIME_DPS"
	case CodeReceiveSignedDatapoints:
		return "RECEIVE_SIGN_DPS"
	case CodeReceiveSignedTimeDatapoints:
		return "RECEIVE_SIGN_TIME_DPS"
	case CodeTimeRequestMillis:
		return "TIME1_REQ"
	case CodeTimeRequestFields:
		return "TIME2_REQ"
	default:
		return "UNKNOWN"
	}
}

// FromDevice reports whether the code originates from the device.
func (c Code) FromDevice() bool {
	return c >= 0x8000
}
