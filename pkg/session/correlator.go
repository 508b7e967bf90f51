package session

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tuya-local/tuyable-go/pkg/crypto"
	"github.com/tuya-local/tuyable-go/pkg/datapoint"
	"github.com/tuya-local/tuyable-go/pkg/frame"
	"github.com/tuya-local/tuyable-go/pkg/log"
)

// result is what a pending request resolves to.
type result struct {
	frame *frame.Frame
	err   error
}

// nextSeq returns a fresh sequence number. Zero is never issued; the wire
// reserves it for "not a response".
func (s *Session) nextSeq() uint32 {
	return atomic.AddUint32(&s.seq, 1)
}

// roundTrip sends a request and waits for the matching response. Each
// retry attempt gets a fresh sequence number, so a response to an
// abandoned attempt is dropped as stale instead of satisfying the retry.
func (s *Session) roundTrip(ctx context.Context, code frame.Code, data []byte, flag crypto.SecurityFlag) (*frame.Frame, error) {
	for attempt := 0; attempt < s.cfg.Retries; attempt++ {
		seq := s.nextSeq()
		ch := make(chan result, 1)

		s.pendingMu.Lock()
		s.pending[seq] = ch
		s.pendingMu.Unlock()

		err := s.sendFrame(&frame.Frame{SeqNum: seq, Code: code, Data: data}, flag)
		if err != nil {
			s.unregister(seq)
			return nil, err
		}

		timer := time.NewTimer(s.cfg.RequestTimeout)
		select {
		case res := <-ch:
			timer.Stop()
			s.unregister(seq)
			if res.err != nil {
				return nil, res.err
			}
			return res.frame, nil
		case <-ctx.Done():
			timer.Stop()
			s.unregister(seq)
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		case <-timer.C:
			s.unregister(seq)
			// Next attempt with a fresh sequence number.
		}
	}
	return nil, fmt.Errorf("%w: %s after %d attempts", ErrRequestTimeout, code, s.cfg.Retries)
}

func (s *Session) unregister(seq uint32) {
	s.pendingMu.Lock()
	delete(s.pending, seq)
	s.pendingMu.Unlock()
}

// failPending resolves every outstanding request with the given error.
func (s *Session) failPending(err error) {
	s.pendingMu.Lock()
	for seq, ch := range s.pending {
		select {
		case ch <- result{err: err}:
		default:
		}
		delete(s.pending, seq)
	}
	s.pendingMu.Unlock()
}

// sendFrame encodes, seals, fragments and writes one frame. Fragments of
// one frame are written back to back under the write lock; interleaving
// them would corrupt the device's reassembly counter.
func (s *Session) sendFrame(f *frame.Frame, flag crypto.SecurityFlag) error {
	plaintext, err := f.Encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	ring := s.ring
	s.mu.Unlock()
	if ring == nil {
		return ErrNotReady
	}
	sealed, err := ring.Seal(flag, plaintext)
	if err != nil {
		return err
	}
	fragments, err := frame.Fragment(sealed, s.cfg.Transport.MTU(), s.cfg.ProtocolVersion)
	if err != nil {
		return err
	}

	s.logMessage(log.DirectionOut, f)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for i, fragment := range fragments {
		s.logFragment(log.DirectionOut, uint32(i), fragment)
		if err := s.cfg.Transport.Write(context.Background(), fragment); err != nil {
			return fmt.Errorf("%w: %v", ErrLinkLost, err)
		}
	}
	return nil
}

// handleNotification is the transport callback for inbound fragments.
func (s *Session) handleNotification(data []byte) {
	packetNum, _ := frame.PacketNum(data)
	s.logFragment(log.DirectionIn, packetNum, data)

	s.mu.Lock()
	sealed, err := s.asm.Feed(data)
	s.mu.Unlock()
	if err != nil {
		s.logError(log.LayerTransport, err, "")
		return
	}
	if sealed == nil {
		return
	}

	s.mu.Lock()
	ring := s.ring
	s.mu.Unlock()
	if ring == nil {
		return
	}
	plaintext, _, err := ring.Open(sealed)
	if err != nil {
		s.logError(log.LayerFrame, err, "")
		return
	}
	f, err := frame.Decode(plaintext)
	if err != nil {
		s.logError(log.LayerFrame, err, "")
		return
	}

	s.logMessage(log.DirectionIn, f)

	if f.IsResponse() {
		s.dispatchResponse(f)
		return
	}
	s.dispatchPush(f)
}

// dispatchResponse resolves the pending request with the matching
// sequence number. Responses to abandoned attempts are dropped.
func (s *Session) dispatchResponse(f *frame.Frame) {
	s.pendingMu.Lock()
	ch, ok := s.pending[f.ResponseTo]
	s.pendingMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- result{frame: f}:
	default:
	}
}

// dispatchPush handles device-originated frames: datapoint reports get
// acknowledged and forwarded, time requests get answered.
func (s *Session) dispatchPush(f *frame.Frame) {
	switch f.Code {
	case frame.CodeReceiveDatapoints:
		s.handleReport(f, Push{}, 0)
	case frame.CodeReceiveTimeDatapoints:
		ts, pos, err := datapoint.ParseTimestamp(f.Data, 0)
		if err != nil {
			s.logError(log.LayerDatapoint, err, "")
			return
		}
		s.handleReport(f, Push{Timestamp: ts, HasTimestamp: true}, pos)
	case frame.CodeReceiveSignedDatapoints:
		s.handleSignedReport(f, false)
	case frame.CodeReceiveSignedTimeDatapoints:
		s.handleSignedReport(f, true)
	case frame.CodeTimeRequestMillis:
		s.answerTimeMillis(f)
	case frame.CodeTimeRequestFields:
		s.answerTimeFields(f)
	}
}

// handleReport parses records starting at pos, acknowledges the push and
// forwards it to the push handler.
func (s *Session) handleReport(f *frame.Frame, push Push, pos int) {
	records, err := datapoint.ParseRecords(f.Data, pos)
	if err != nil {
		s.logError(log.LayerDatapoint, err, "")
		// Records parsed before the truncation still get delivered.
	}
	push.Records = records

	s.ack(f, nil)

	s.mu.Lock()
	handler := s.onPush
	s.mu.Unlock()
	if handler != nil && len(records) > 0 {
		handler(push)
	}
}

// handleSignedReport handles the counter-carrying report variants. The ack
// echoes the counter so the device can clear its retransmit state.
func (s *Session) handleSignedReport(f *frame.Frame, timed bool) {
	if len(f.Data) < 3 {
		return
	}
	dpSeq := binary.BigEndian.Uint16(f.Data[:2])
	flags := f.Data[2]
	push := Push{DPSeq: dpSeq, Signed: true}

	pos := 3
	if timed {
		ts, next, err := datapoint.ParseTimestamp(f.Data, pos)
		if err != nil {
			s.logError(log.LayerDatapoint, err, "")
			return
		}
		push.Timestamp = ts
		push.HasTimestamp = true
		pos = next
	}

	records, err := datapoint.ParseRecords(f.Data, pos)
	if err != nil {
		s.logError(log.LayerDatapoint, err, "")
	}
	push.Records = records

	ack := binary.BigEndian.AppendUint16(nil, dpSeq)
	ack = append(ack, flags, 0)
	s.ack(f, ack)

	s.mu.Lock()
	handler := s.onPush
	s.mu.Unlock()
	if handler != nil && len(records) > 0 {
		handler(push)
	}
}

// answerTimeMillis answers a time request with 13 decimal digits of Unix
// milliseconds followed by the UTC offset as a signed big-endian short in
// hundredths of hours.
func (s *Session) answerTimeMillis(f *frame.Frame) {
	now := s.cfg.Now()
	_, offsetSec := now.Zone()
	data := []byte(fmt.Sprintf("%013d", now.UnixMilli()))
	data = binary.BigEndian.AppendUint16(data, uint16(int16(offsetSec/36)))
	s.ack(f, data)
}

// answerTimeFields answers a time request with packed local time fields:
// year modulo 100, month, day, hour, minute, second, weekday with Monday
// as 0, then the same 2-byte UTC offset in hundredths of hours.
func (s *Session) answerTimeFields(f *frame.Frame) {
	now := s.cfg.Now()
	_, offsetSec := now.Zone()
	data := []byte{
		byte(now.Year() % 100),
		byte(now.Month()),
		byte(now.Day()),
		byte(now.Hour()),
		byte(now.Minute()),
		byte(now.Second()),
		byte((int(now.Weekday()) + 6) % 7),
	}
	data = binary.BigEndian.AppendUint16(data, uint16(int16(offsetSec/36)))
	s.ack(f, data)
}

// ack answers a device-originated frame with the same code.
func (s *Session) ack(f *frame.Frame, data []byte) {
	resp := &frame.Frame{SeqNum: s.nextSeq(), ResponseTo: f.SeqNum, Code: f.Code, Data: data}
	if err := s.sendFrame(resp, crypto.FlagSessionKey); err != nil {
		s.logError(log.LayerSession, err, "")
	}
}

// fragmentLogCap bounds the raw bytes captured per fragment event. Tuya
// fragments fit the 20-byte default MTU; the cap only bites on links with
// a renegotiated MTU.
const fragmentLogCap = 32

func (s *Session) logFragment(dir log.Direction, packetNum uint32, data []byte) {
	truncated := false
	captured := data
	if len(captured) > fragmentLogCap {
		captured = captured[:fragmentLogCap]
		truncated = true
	}
	s.cfg.Logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: dir,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		DeviceID:  s.cfg.DeviceID,
		Address:   s.cfg.Address,
		Fragment: &log.FragmentEvent{
			Size:      len(data),
			PacketNum: packetNum,
			Data:      append([]byte(nil), captured...),
			Truncated: truncated,
		},
	})
}

func (s *Session) logMessage(dir log.Direction, f *frame.Frame) {
	event := log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: dir,
		Layer:     log.LayerFrame,
		Category:  log.CategoryMessage,
		DeviceID:  s.cfg.DeviceID,
		Address:   s.cfg.Address,
		Message: &log.MessageEvent{
			SeqNum:     f.SeqNum,
			ResponseTo: f.ResponseTo,
			Code:       uint16(f.Code),
			DataLen:    len(f.Data),
		},
	}
	if f.IsResponse() && len(f.Data) == 1 {
		r := f.Data[0]
		event.Message.Result = &r
	}
	s.cfg.Logger.Log(event)
}

func (s *Session) logError(layer log.Layer, err error, context string) {
	s.cfg.Logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: log.DirectionIn,
		Layer:     layer,
		Category:  log.CategoryError,
		DeviceID:  s.cfg.DeviceID,
		Address:   s.cfg.Address,
		Error:     &log.ErrorEventData{Layer: layer, Message: err.Error(), Context: context},
	})
}
