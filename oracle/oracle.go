// Package oracle implements the decryption oracle: a background worker that
// picks up pending decryption requests, resolves every accumulator handle to
// its cleartext count through the coprocessor, signs the result batch and
// delivers it back to the survey engine as a callback.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/fhe-survey/crypto/ethereum"
	"github.com/vocdoni/fhe-survey/fhe"
	"github.com/vocdoni/fhe-survey/log"
	"github.com/vocdoni/fhe-survey/storage"
	"github.com/vocdoni/fhe-survey/survey"
	"github.com/vocdoni/fhe-survey/types"
)

const defaultTickInterval = time.Second

// Oracle is a worker that resolves pending decryption requests.
type Oracle struct {
	stg    *storage.Storage
	cop    *fhe.Coprocessor
	engine *survey.Engine
	signer *ethereum.SignKeys
	ctx    context.Context
	cancel context.CancelFunc

	// tickInterval is how long the worker sleeps when the queue is empty.
	tickInterval time.Duration
}

// New creates a decryption oracle with a fresh signing identity. The engine
// accepting its callbacks must be configured with the oracle's Address.
func New(stg *storage.Storage, cop *fhe.Coprocessor) (*Oracle, error) {
	signer := ethereum.NewSignKeys()
	if err := signer.Generate(); err != nil {
		return nil, fmt.Errorf("failed to generate oracle keys: %w", err)
	}
	return &Oracle{
		stg:          stg,
		cop:          cop,
		signer:       signer,
		tickInterval: defaultTickInterval,
	}, nil
}

// Address returns the oracle's callback signing identity.
func (o *Oracle) Address() common.Address {
	return o.signer.Address()
}

// SetEngine binds the engine the oracle delivers callbacks to. Must be called
// before Start.
func (o *Oracle) SetEngine(engine *survey.Engine) {
	o.engine = engine
}

// Start method starts the background decryption worker. It stops when the
// context is cancelled.
func (o *Oracle) Start(ctx context.Context) error {
	if o.engine == nil {
		return fmt.Errorf("oracle has no engine bound")
	}
	o.ctx, o.cancel = context.WithCancel(ctx)
	ticker := time.NewTicker(o.tickInterval)

	go func() {
		defer ticker.Stop()
		for {
			req, err := o.stg.NextDecryptionRequest()
			if err != nil {
				if !errors.Is(err, storage.ErrNoMoreElements) {
					log.Errorw(err, "failed to get next decryption request")
				}
				select {
				case <-ticker.C:
				case <-o.ctx.Done():
					return
				}
				continue
			}

			log.Debugw("new decryption request", "requestId", req.RequestID.String(), "surveyId", req.SurveyID)
			startTime := time.Now()

			if err := o.resolve(req); err != nil {
				log.Warnw("failed to resolve decryption request",
					"requestId", req.RequestID.String(), "error", err.Error())
			}
			// the request leaves the queue either way, a failed one would
			// otherwise be retried forever
			if err := o.stg.MarkDecryptionRequestDone(req.RequestID); err != nil {
				log.Errorw(err, "failed to mark decryption request done")
			}
			log.Debugw("decryption request resolved",
				"requestId", req.RequestID.String(), "took", time.Since(startTime).String())
		}
	}()
	return nil
}

// Stop method cancels the worker context.
func (o *Oracle) Stop() error {
	o.cancel()
	return nil
}

// resolve decrypts every handle of the request, signs the cleartext batch and
// invokes the engine callback.
func (o *Oracle) resolve(req *storage.DecryptionRequest) error {
	srv, err := o.engine.Survey(req.SurveyID)
	if err != nil {
		return fmt.Errorf("failed to get survey: %w", err)
	}
	// no option counter can exceed the number of cast votes, which bounds
	// the discrete log search
	maxCount := srv.TotalVotes
	cleartexts := make([]uint64, len(req.Handles))
	for i, handle := range req.Handles {
		v, err := o.cop.Decrypt(handle, maxCount)
		if err != nil {
			return fmt.Errorf("failed to decrypt handle %s: %w", handle.String(), err)
		}
		cleartexts[i] = v
	}
	proof, err := o.signer.SignEthereum(survey.CallbackMessage(req.RequestID, cleartexts))
	if err != nil {
		return fmt.Errorf("failed to sign decryption result: %w", err)
	}
	return o.engine.DecryptionCallback(req.RequestID, cleartexts, types.HexBytes(proof))
}
