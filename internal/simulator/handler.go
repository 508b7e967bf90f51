package simulator

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/tuya-local/tuyable-go/pkg/crypto"
	"github.com/tuya-local/tuyable-go/pkg/datapoint"
	"github.com/tuya-local/tuyable-go/pkg/frame"
)

// deviceInfoSize is the size of the device info response payload.
const deviceInfoSize = 14 + crypto.AuthKeySize

// pairPayloadSize is the zero-padded size of the pairing request payload.
const pairPayloadSize = 44

// Pairing results.
const (
	pairResultOK           = 0
	pairResultRejected     = 1
	pairResultAlreadyBound = 2
)

// handle dispatches one decoded frame. Runs on its own goroutine so
// responses reach the controller asynchronously, like notifications over a
// real link.
func (d *Device) handle(f *frame.Frame) {
	switch f.Code {
	case frame.CodeDeviceInfo:
		d.handleDeviceInfo(f)
	case frame.CodePair:
		d.handlePair(f)
	case frame.CodeDeviceStatus:
		d.handleStatus(f)
	case frame.CodeSendDatapoints:
		d.handleSendDatapoints(f)
	case frame.CodeUnbind, frame.CodeDeviceReset:
		d.handleUnbind(f)
	default:
		if f.IsResponse() {
			d.handleResponse(f)
		}
		// Unknown request codes are ignored, as real firmware does.
	}
}

// handleDeviceInfo answers the handshake opener. The request carries the
// controller nonce; the response delivers our nonce (srand), version info
// and the auth key, sealed with the login key because no session key exists
// yet. The session key is derived here on the device side too.
func (d *Device) handleDeviceInfo(f *frame.Frame) {
	if len(f.Data) < crypto.NonceSize {
		return
	}

	srand := make([]byte, crypto.NonceSize)
	authKey := make([]byte, crypto.AuthKeySize)
	if _, err := rand.Read(srand); err != nil {
		return
	}
	if _, err := rand.Read(authKey); err != nil {
		return
	}

	d.mu.Lock()
	d.localNonce = append([]byte(nil), f.Data[:crypto.NonceSize]...)
	d.srand = srand
	d.authKey = authKey
	sessionKey, err := crypto.DeriveSessionKey(d.cfg.LocalKey, d.localNonce, d.srand)
	if err != nil {
		d.mu.Unlock()
		return
	}
	d.ring.SetSessionKey(sessionKey)
	d.ring.SetAuthKey(authKey)
	bound := byte(0)
	if d.cfg.AlreadyPaired {
		bound = 1
	}
	d.mu.Unlock()

	data := make([]byte, deviceInfoSize)
	data[0] = 2 // device firmware version
	data[1] = 0
	data[2] = d.cfg.ProtocolVersion
	data[3] = 0
	data[4] = 0 // capability flags
	data[5] = bound
	copy(data[6:12], srand)
	data[12] = 1 // hardware version
	data[13] = 0
	copy(data[14:], authKey)

	d.respond(f, frame.CodeDeviceInfo, data, crypto.FlagLoginKey)
}

// handlePair validates the pairing payload against our identity. The
// controller proves key possession simply by producing a frame that
// decrypts and checksums under the derived session key.
func (d *Device) handlePair(f *frame.Frame) {
	want := buildPairPayload(d.cfg.UUID, d.cfg.LocalKey, d.cfg.DeviceID)
	result := byte(pairResultOK)

	d.mu.Lock()
	switch {
	case !bytes.Equal(f.Data, want):
		result = pairResultRejected
	case d.cfg.AlreadyPaired:
		result = pairResultAlreadyBound
		d.paired = true
	default:
		d.paired = true
	}
	d.mu.Unlock()

	d.respond(f, frame.CodePair, []byte{result}, crypto.FlagSessionKey)
}

// buildPairPayload renders uuid + localKey[:6] + deviceID zero-padded to
// the fixed pairing payload size.
func buildPairPayload(uuid string, localKey []byte, deviceID string) []byte {
	payload := make([]byte, 0, pairPayloadSize)
	payload = append(payload, uuid...)
	payload = append(payload, localKey[:crypto.LocalKeyPrefixSize]...)
	payload = append(payload, deviceID...)
	for len(payload) < pairPayloadSize {
		payload = append(payload, 0)
	}
	return payload[:pairPayloadSize]
}

// handleStatus acknowledges the status probe and follows up with a full
// datapoint report, which is how real devices deliver their initial state.
func (d *Device) handleStatus(f *frame.Frame) {
	d.mu.Lock()
	paired := d.paired
	d.mu.Unlock()
	if !paired {
		return
	}

	d.respond(f, frame.CodeDeviceStatus, []byte{0}, crypto.FlagSessionKey)

	ids := d.cfg.Schema.IDs()
	updates := make([]datapoint.Update, 0, len(ids))
	d.mu.Lock()
	for _, id := range ids {
		if v, ok := d.dps[id]; ok {
			updates = append(updates, datapoint.Update{ID: id, Value: v})
		}
	}
	d.mu.Unlock()
	if len(updates) > 0 {
		_ = d.PushDatapoints(updates...)
	}
}

// handleSendDatapoints applies a write batch and reports the new values
// back as a push, the same confirm-by-report flow real firmware follows.
func (d *Device) handleSendDatapoints(f *frame.Frame) {
	d.mu.Lock()
	paired := d.paired
	d.mu.Unlock()
	if !paired {
		return
	}

	records, err := datapoint.ParseRecords(f.Data, 0)
	if err != nil {
		d.respond(f, frame.CodeSendDatapoints, []byte{1}, crypto.FlagSessionKey)
		return
	}

	updates, _ := d.cfg.Schema.DecodeBatch(records)
	d.mu.Lock()
	for _, u := range updates {
		d.dps[u.ID] = u.Value
		d.writeLog[u.ID] = append(d.writeLog[u.ID], u.Value)
	}
	d.mu.Unlock()

	d.respond(f, frame.CodeSendDatapoints, []byte{0}, crypto.FlagSessionKey)
	if len(updates) > 0 {
		_ = d.PushDatapoints(updates...)
	}
}

// handleUnbind acknowledges and drops the pairing state.
func (d *Device) handleUnbind(f *frame.Frame) {
	d.mu.Lock()
	d.paired = false
	d.mu.Unlock()
	d.respond(f, f.Code, []byte{0}, crypto.FlagSessionKey)
}

// handleResponse records controller answers to device-originated requests
// (push acks, time responses).
func (d *Device) handleResponse(f *frame.Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timeReqSeq != 0 && f.ResponseTo == d.timeReqSeq {
		d.timeAnswer = append([]byte(nil), f.Data...)
		d.timeReqSeq = 0
	}
}

// respond encodes, seals, fragments and delivers a response frame.
func (d *Device) respond(req *frame.Frame, code frame.Code, data []byte, flag crypto.SecurityFlag) {
	d.mu.Lock()
	d.seq++
	f := &frame.Frame{SeqNum: d.seq, ResponseTo: req.SeqNum, Code: code, Data: data}
	d.mu.Unlock()
	d.deliver(f, flag)
}

// PushDatapoints sends an unsolicited datapoint report for the given
// updates, the frame real devices emit on any local state change.
func (d *Device) PushDatapoints(updates ...datapoint.Update) error {
	data, err := d.cfg.Schema.EncodeBatch(updates)
	if err != nil {
		return err
	}
	return d.push(frame.CodeReceiveDatapoints, data)
}

// PushTimedDatapoints sends a datapoint report prefixed with a timestamp.
// Encoding 0 carries 13 decimal digits of Unix milliseconds, encoding 1 a
// big-endian uint32 of Unix seconds.
func (d *Device) PushTimedDatapoints(encoding byte, unixMillis int64, updates ...datapoint.Update) error {
	records, err := d.cfg.Schema.EncodeBatch(updates)
	if err != nil {
		return err
	}
	var data []byte
	switch encoding {
	case 0:
		data = append(data, 0)
		data = append(data, fmt.Sprintf("%013d", unixMillis)...)
	case 1:
		data = append(data, 1)
		data = binary.BigEndian.AppendUint32(data, uint32(unixMillis/1000))
	default:
		return fmt.Errorf("unknown timestamp encoding %d", encoding)
	}
	data = append(data, records...)
	return d.push(frame.CodeReceiveTimeDatapoints, data)
}

// PushSignedDatapoints sends a datapoint report with a leading push
// sequence counter, the variant the controller must acknowledge with the
// counter echoed back.
func (d *Device) PushSignedDatapoints(dpSeq uint16, updates ...datapoint.Update) error {
	records, err := d.cfg.Schema.EncodeBatch(updates)
	if err != nil {
		return err
	}
	data := binary.BigEndian.AppendUint16(nil, dpSeq)
	data = append(data, 0) // flags
	data = append(data, records...)
	return d.push(frame.CodeReceiveSignedDatapoints, data)
}

// RequestTime sends a device-originated time request. Encoding 0 asks for
// the millisecond string form, encoding 1 for packed local time fields.
// The controller's answer is retained for inspection via TimeAnswer.
func (d *Device) RequestTime(encoding byte) error {
	code := frame.CodeTimeRequestMillis
	if encoding == 1 {
		code = frame.CodeTimeRequestFields
	}

	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.timeReqSeq = seq
	d.timeAnswer = nil
	f := &frame.Frame{SeqNum: seq, Code: code}
	d.mu.Unlock()

	d.deliver(f, crypto.FlagSessionKey)
	return nil
}

// TimeAnswer returns the payload of the controller's last time response,
// or nil if none arrived yet.
func (d *Device) TimeAnswer() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.timeAnswer...)
}

func (d *Device) push(code frame.Code, data []byte) error {
	d.mu.Lock()
	if !d.paired {
		d.mu.Unlock()
		return fmt.Errorf("device not paired")
	}
	d.seq++
	f := &frame.Frame{SeqNum: d.seq, Code: code, Data: data}
	d.mu.Unlock()

	d.deliver(f, crypto.FlagSessionKey)
	return nil
}

// deliver seals and fragments a frame and feeds it to the notification
// handler fragment by fragment.
func (d *Device) deliver(f *frame.Frame, flag crypto.SecurityFlag) {
	plaintext, err := f.Encode()
	if err != nil {
		return
	}

	d.mu.Lock()
	sealed, err := d.ring.Seal(flag, plaintext)
	if err != nil {
		d.mu.Unlock()
		return
	}
	fragments, err := frame.Fragment(sealed, d.cfg.MTU, d.cfg.ProtocolVersion)
	if err != nil {
		d.mu.Unlock()
		return
	}
	notify := d.notify
	connected := d.connected
	d.mu.Unlock()

	if notify == nil || !connected {
		return
	}
	for _, fragment := range fragments {
		notify(fragment)
	}
}
