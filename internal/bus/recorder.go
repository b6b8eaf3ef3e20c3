package bus

import (
	"context"
	"encoding/hex"
	"time"

	"example.com/obdgate/internal/common"
	"example.com/obdgate/internal/j1939"
)

// Recorder wraps a Gateway, appending every exchange to a request log and
// counting it in metrics. Either sink may be nil.
type Recorder struct {
	next    Gateway
	log     *common.RequestLog
	metrics *common.Metrics
}

// NewRecorder decorates next.
func NewRecorder(next Gateway, log *common.RequestLog, metrics *common.Metrics) *Recorder {
	return &Recorder{next: next, log: log, metrics: metrics}
}

func (r *Recorder) SourceAddress() int { return r.next.SourceAddress() }

func (r *Recorder) OnImpostor(fn ImpostorFunc) { r.next.OnImpostor(fn) }

func (r *Recorder) RequestGlobal(ctx context.Context, pgn uint32) (RequestResult, error) {
	res, err := r.next.RequestGlobal(ctx, pgn)
	entry := common.RequestEntry{Kind: "global", PGN: pgn, Destination: j1939.GlobalAddress,
		RequestHex: hex.EncodeToString(j1939.RequestPayload(pgn))}
	var nacks int
	for _, p := range res.Packets {
		entry.Responses = append(entry.Responses, p.String())
	}
	for _, a := range res.Acks {
		entry.Responses = append(entry.Responses, a.String())
		if a.Response == j1939.NACK {
			nacks++
		}
	}
	for _, m := range res.Malformed {
		entry.Responses = append(entry.Responses, "malformed: "+m.Err.Error())
	}
	if err == nil && res.IsEmpty() {
		r.metrics.IncTimeout()
		entry.Error = ErrTimeout.Error()
	}
	r.finish(entry, err, len(res.Packets), nacks)
	return res, err
}

func (r *Recorder) RequestDS(ctx context.Context, pgn uint32, address int, timeout time.Duration) (BusResult, error) {
	res, err := r.next.RequestDS(ctx, pgn, address, timeout)
	entry := common.RequestEntry{Kind: "ds", PGN: pgn, Destination: address,
		RequestHex: hex.EncodeToString(j1939.RequestPayload(pgn))}
	r.finishBus(entry, res, err)
	return res, err
}

func (r *Recorder) RequestDM7(ctx context.Context, address, testID, spn, fmi int) (BusResult, error) {
	res, err := r.next.RequestDM7(ctx, address, testID, spn, fmi)
	entry := common.RequestEntry{Kind: "dm7", PGN: j1939.PGNDM7, Destination: address,
		RequestHex: hex.EncodeToString(j1939.DM7Payload(testID, spn, fmi))}
	r.finishBus(entry, res, err)
	return res, err
}

func (r *Recorder) Collect(ctx context.Context, pgn uint32, window time.Duration) ([]j1939.Packet, error) {
	packets, err := r.next.Collect(ctx, pgn, window)
	entry := common.RequestEntry{Kind: "collect", PGN: pgn, Destination: j1939.GlobalAddress}
	for _, p := range packets {
		entry.Responses = append(entry.Responses, p.String())
	}
	r.finish(entry, err, len(packets), 0)
	return packets, err
}

func (r *Recorder) finishBus(entry common.RequestEntry, res BusResult, err error) {
	var positive, nacks int
	switch {
	case res.Packet != nil:
		positive = 1
		entry.Responses = []string{res.Packet.String()}
	case res.Ack != nil:
		if res.IsNack() {
			nacks = 1
		}
		entry.Responses = []string{res.Ack.String()}
	case res.Malformed != nil:
		entry.Responses = []string{"malformed: " + res.Malformed.Error()}
	case err == nil:
		r.metrics.IncTimeout()
		entry.Error = ErrTimeout.Error()
	}
	r.finish(entry, err, positive, nacks)
}

func (r *Recorder) finish(entry common.RequestEntry, err error, positive, nacks int) {
	r.metrics.IncRequest()
	r.metrics.AddResponses(positive, nacks)
	if err != nil {
		entry.Error = err.Error()
	}
	if r.log == nil {
		return
	}
	if lerr := r.log.Append(entry); lerr != nil {
		common.Logf("request log: %v", lerr)
	}
}
