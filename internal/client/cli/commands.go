package cli

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/docattest/internal/api"
	"github.com/dmitrijs2005/docattest/internal/client/client"
	"github.com/dmitrijs2005/docattest/internal/client/wallet"
	"github.com/dmitrijs2005/docattest/internal/server/models"
)

var errUsage = errors.New("wrong number of arguments, see help")

// Unlock reads a private key without echo and keeps the wallet in memory.
func (a *App) Unlock(ctx context.Context) error {
	secret, err := GetSecret("Enter private key (hex): ", a.out)
	if err != nil {
		return err
	}
	defer wipe(secret)

	w, err := wallet.FromHex(string(secret))
	if err != nil {
		return err
	}
	a.wallet = w
	fmt.Fprintln(a.out, "Signing as", w.Address())
	return nil
}

// Hash prints the content hash of a local file, as the server computes it on upload.
func (a *App) Hash(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	fmt.Fprintln(a.out, hex.EncodeToString(h.Sum(nil)))
	return nil
}

func (a *App) Publish(ctx context.Context, args []string) error {
	var hash string
	var err error
	if len(args) > 0 {
		hash = args[0]
	} else if hash, err = GetSimpleText(a.reader, "Content hash", a.out); err != nil {
		return err
	}

	reqStr, err := GetSimpleText(a.reader, "Required signatures", a.out)
	if err != nil {
		return err
	}
	required, err := strconv.Atoi(reqStr)
	if err != nil {
		return fmt.Errorf("required signatures must be a number: %w", err)
	}

	policy, err := GetTextOr(a.reader, "Identity policy", a.config.IdentityPolicy, a.out)
	if err != nil {
		return err
	}

	recipients, err := GetSimpleText(a.reader, "Recipients (comma separated, empty for none)", a.out)
	if err != nil {
		return err
	}

	creator, err := a.creator(models.IdentityPolicy(policy))
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	doc, err := a.client.Publish(ctx, api.PublishRequest{
		ContentHash:        hash,
		RequiredSignatures: required,
		IdentityPolicy:     policy,
		Recipients:         splitList(recipients),
		Creator:            creator,
	})
	if err != nil {
		return err
	}
	a.printDocument(doc)
	return nil
}

// creator is the publishing identity: the loaded wallet, or a World ID
// nullifier typed in for personhood documents.
func (a *App) creator(policy models.IdentityPolicy) (api.Identity, error) {
	if policy == models.PolicyProofOfPersonhood {
		n, err := GetSimpleText(a.reader, "Your nullifier hash", a.out)
		if err != nil {
			return api.Identity{}, err
		}
		return api.Identity{Kind: string(models.IdentityPersonhood), Value: n}, nil
	}
	if a.wallet == nil {
		return api.Identity{}, client.ErrNoWallet
	}
	return api.Identity{Kind: string(models.IdentityWallet), Value: a.wallet.Address()}, nil
}

// Sign approves a document given by id or content hash.
func (a *App) Sign(ctx context.Context, args []string) error {
	var ref string
	var err error
	if len(args) > 0 {
		ref = args[0]
	} else if ref, err = GetSimpleText(a.reader, "Document id or content hash", a.out); err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	doc, err := a.resolve(ctx, ref)
	if err != nil {
		return err
	}

	req := api.SubmitRequest{DocumentID: doc.ID}
	if models.IdentityPolicy(doc.IdentityPolicy) == models.PolicyProofOfPersonhood {
		req.Identity, req.Proof, err = a.personhoodProof()
	} else {
		req.Identity, req.Proof, err = a.walletProof(doc.ContentHash)
	}
	if err != nil {
		return err
	}

	res, err := a.client.Submit(ctx, req)
	if err != nil {
		return err
	}

	switch res.Outcome {
	case "accepted":
		fmt.Fprintf(a.out, "Signature accepted at position %d, record %s\n", res.Position, res.AttestationRecordID)
	case "already_signed":
		fmt.Fprintln(a.out, "You have already signed this document")
	case "threshold_met":
		fmt.Fprintln(a.out, "The document already has all required signatures")
	default:
		fmt.Fprintln(a.out, "Outcome:", res.Outcome)
	}
	fmt.Fprintf(a.out, "Remaining signatures: %d\n", res.RemainingSignatures)
	if res.FinalAttestationID != "" {
		fmt.Fprintln(a.out, "Final attestation:", res.FinalAttestationID)
	}
	return nil
}

// resolve treats ref as a content hash when a document with that hash exists.
func (a *App) resolve(ctx context.Context, ref string) (api.Document, error) {
	chk, err := a.client.Check(ctx, ref)
	if err == nil && chk.Exists {
		ref = chk.DocumentID
	}
	return a.client.GetDocument(ctx, ref)
}

func (a *App) walletProof(contentHash string) (api.Identity, api.Proof, error) {
	if a.wallet == nil {
		return api.Identity{}, api.Proof{}, client.ErrNoWallet
	}
	sig, err := a.wallet.SignApproval(contentHash)
	if err != nil {
		return api.Identity{}, api.Proof{}, err
	}
	return api.Identity{Kind: string(models.IdentityWallet), Value: a.wallet.Address()}, api.Proof{Signature: sig}, nil
}

// personhoodProof collects a World ID proof produced by an external app.
func (a *App) personhoodProof() (api.Identity, api.Proof, error) {
	var p api.Proof
	fields := []struct {
		prompt string
		dst    *string
	}{
		{"Merkle root", &p.MerkleRoot},
		{"Nullifier hash", &p.NullifierHash},
		{"Proof", &p.Proof},
	}
	for _, f := range fields {
		v, err := GetSimpleText(a.reader, f.prompt, a.out)
		if err != nil {
			return api.Identity{}, api.Proof{}, err
		}
		*f.dst = v
	}
	level, err := GetTextOr(a.reader, "Verification level", "orb", a.out)
	if err != nil {
		return api.Identity{}, api.Proof{}, err
	}
	p.VerificationLevel = level

	return api.Identity{Kind: string(models.IdentityPersonhood), Value: p.NullifierHash}, p, nil
}

func (a *App) Status(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	doc, err := a.client.GetDocument(ctx, args[0])
	if err != nil {
		return err
	}
	a.printDocument(doc)
	return nil
}

func (a *App) Check(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	res, err := a.client.Check(ctx, args[0])
	if err != nil {
		return err
	}
	if !res.Exists {
		fmt.Fprintln(a.out, "No document with this content hash")
		return nil
	}
	fmt.Fprintln(a.out, "Document", res.DocumentID)
	return nil
}

func (a *App) Finalize(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	res, err := a.client.Finalize(ctx, args[0])
	if err != nil {
		return err
	}
	if res.AlreadyFinalized {
		fmt.Fprintln(a.out, "Already finalized")
	}
	fmt.Fprintln(a.out, "Final attestation:", res.FinalAttestationID)
	return nil
}

func (a *App) Ping(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.Ping(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "OK")
	return nil
}

func (a *App) printDocument(d api.Document) {
	fmt.Fprintf(a.out, "Document %s\n", d.ID)
	fmt.Fprintf(a.out, "  content hash: %s\n", d.ContentHash)
	fmt.Fprintf(a.out, "  policy:       %s\n", d.IdentityPolicy)
	fmt.Fprintf(a.out, "  state:        %s\n", d.State)
	fmt.Fprintf(a.out, "  signatures:   %d of %d\n", d.RequiredSignatures-d.RemainingSignatures, d.RequiredSignatures)
	if len(d.Recipients) > 0 {
		fmt.Fprintf(a.out, "  recipients:   %s\n", strings.Join(d.Recipients, ", "))
	}
	if d.FinalAttestationID != "" {
		fmt.Fprintf(a.out, "  final:        %s\n", d.FinalAttestationID)
	}
}
