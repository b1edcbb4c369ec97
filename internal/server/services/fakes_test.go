package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/dmitrijs2005/docattest/internal/logging"
	"github.com/dmitrijs2005/docattest/internal/server/identity"
	"github.com/dmitrijs2005/docattest/internal/server/ledger"
	"github.com/dmitrijs2005/docattest/internal/server/models"
)

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// memRepo is an in-memory DocumentRepository. One mutex makes every method
// atomic, which matches the conditional writes of the postgres store.
type memRepo struct {
	mu         sync.Mutex
	seq        int
	docs       map[string]*models.Document
	byHash     map[string]string
	signers    map[string]*models.Signer
	signatures map[string][]*models.Signature

	failFind   error
	failRecord error
	writes     int
}

func newMemRepo() *memRepo {
	return &memRepo{
		docs:       map[string]*models.Document{},
		byHash:     map[string]string{},
		signers:    map[string]*models.Signer{},
		signatures: map[string][]*models.Signature{},
	}
}

func (r *memRepo) nextID(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s-%d", prefix, r.seq)
}

func (r *memRepo) snapshot(d *models.Document) *models.Document {
	cp := *d
	cp.Recipients = append([]string(nil), d.Recipients...)
	cp.SignatureRecordIDs = []string{}
	for _, s := range r.signatures[d.ID] {
		cp.SignatureRecordIDs = append(cp.SignatureRecordIDs, s.AttestationRecordID)
	}
	return &cp
}

func (r *memRepo) FindByID(ctx context.Context, id string) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFind != nil {
		return nil, r.failFind
	}
	d, ok := r.docs[id]
	if !ok {
		return nil, common.ErrNotFound.New("document")
	}
	return r.snapshot(d), nil
}

func (r *memRepo) FindByContentHash(ctx context.Context, h string) (*models.Document, error) {
	r.mu.Lock()
	id, ok := r.byHash[h]
	r.mu.Unlock()
	if !ok {
		return nil, common.ErrNotFound.New("document")
	}
	return r.FindByID(ctx, id)
}

func (r *memRepo) InsertDocument(ctx context.Context, doc *models.Document) (*models.Document, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byHash[doc.ContentHash]; ok {
		return r.snapshot(r.docs[id]), false, nil
	}
	d := *doc
	d.ID = r.nextID("doc")
	d.RemainingSignatures = d.RequiredSignatures
	d.CreatedAt = time.Now()
	r.docs[d.ID] = &d
	r.byHash[d.ContentHash] = d.ID
	r.writes++
	return r.snapshot(&d), true, nil
}

func (r *memRepo) FindOrCreateSigner(ctx context.Context, kind models.IdentityKind, value string) (*models.Signer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := string(kind) + ":" + value
	if s, ok := r.signers[key]; ok {
		return s, nil
	}
	s := &models.Signer{ID: r.nextID("signer")}
	if kind == models.IdentityPersonhood {
		s.PersonhoodID = value
	} else {
		s.WalletAddress = value
	}
	r.signers[key] = s
	return s, nil
}

func (r *memRepo) FindSignature(ctx context.Context, docID, signerID string) (*models.Signature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.signatures[docID] {
		if s.SignerID == signerID {
			return s, nil
		}
	}
	return nil, common.ErrNotFound.New("signature")
}

func (r *memRepo) ListSignatures(ctx context.Context, docID string) ([]*models.Signature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.Signature(nil), r.signatures[docID]...), nil
}

func (r *memRepo) RecordSignature(ctx context.Context, sig *models.Signature) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failRecord != nil {
		return nil, r.failRecord
	}
	d, ok := r.docs[sig.DocumentID]
	if !ok {
		return nil, common.ErrNotFound.New("document")
	}
	if d.RemainingSignatures == 0 {
		return nil, common.ErrThresholdAlreadyMet.New(d.ID)
	}
	for _, s := range r.signatures[d.ID] {
		if s.SignerID == sig.SignerID {
			return nil, common.ErrAlreadySigned.New(d.ID)
		}
	}
	d.RemainingSignatures--
	s := *sig
	s.ID = r.nextID("sig")
	s.Position = d.RequiredSignatures - d.RemainingSignatures - 1
	s.SignedAt = time.Now()
	r.signatures[d.ID] = append(r.signatures[d.ID], &s)
	r.writes++
	return r.snapshot(d), nil
}

func (r *memRepo) SetFinalAttestation(ctx context.Context, docID, recordID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[docID]
	if !ok || d.FinalAttestationID != "" || d.RemainingSignatures != 0 {
		return false, nil
	}
	d.FinalAttestationID = recordID
	now := time.Now()
	d.FinalizedAt = &now
	r.writes++
	return true, nil
}

func (r *memRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

type fakeLedger struct {
	offchainErr error
	onchainErr  error
	onchain     atomic.Int32
	delay       time.Duration
	last        atomic.Value
	gate        *gate
}

// gate parks every SignOffchain call until open is called, so concurrent
// submits all finish their reads before any of them writes.
type gate struct {
	arrived sync.WaitGroup
	release chan struct{}
}

func newGate(n int) *gate {
	g := &gate{release: make(chan struct{})}
	g.arrived.Add(n)
	return g
}

func (g *gate) pass() {
	g.arrived.Done()
	<-g.release
}

// open waits until all expected callers are parked, then lets them through.
func (g *gate) open() {
	g.arrived.Wait()
	close(g.release)
}

func (l *fakeLedger) SignOffchain(ctx context.Context, p ledger.Payload) (ledger.OffchainRecord, error) {
	if l.gate != nil {
		l.gate.pass()
	}
	if l.offchainErr != nil {
		return ledger.OffchainRecord{}, l.offchainErr
	}
	id, err := ledger.Digest(p)
	if err != nil {
		return ledger.OffchainRecord{}, err
	}
	return ledger.OffchainRecord{RecordID: id, Token: "token-" + id}, nil
}

func (l *fakeLedger) CommitOnchain(ctx context.Context, p ledger.Payload) (string, error) {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	if l.onchainErr != nil {
		return "", l.onchainErr
	}
	n := l.onchain.Add(1)
	l.last.Store(p)
	return fmt.Sprintf("0xtx%d", n), nil
}

// fakeVerifier accepts every proof whose signature or nullifier is not "bad".
type fakeVerifier struct {
	err   error
	calls atomic.Int32
}

func (v *fakeVerifier) Verify(ctx context.Context, c identity.Claim) (identity.Verdict, error) {
	v.calls.Add(1)
	if v.err != nil {
		return identity.Verdict{}, v.err
	}
	switch p := c.Proof.(type) {
	case identity.WalletSignature:
		if p.Signature == "bad" {
			return identity.Verdict{Reason: "signature mismatch"}, nil
		}
	case identity.PersonhoodProof:
		if p.Proof == "bad" {
			return identity.Verdict{Reason: "proof rejected"}, nil
		}
	}
	return identity.Verdict{Valid: true}, nil
}

func wallet(n int) identity.WalletAddress {
	return identity.WalletAddress(fmt.Sprintf("0x%040x", n))
}

func person(n int) identity.PersonhoodID {
	return identity.PersonhoodID(fmt.Sprintf("0x%064x", n))
}

func goodSig() identity.WalletSignature { return identity.WalletSignature{Signature: "0xsig"} }
