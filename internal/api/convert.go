package api

import (
	"github.com/dmitrijs2005/docattest/internal/server/models"
	"github.com/dmitrijs2005/docattest/internal/server/services"
)

func (r PublishRequest) ToService() (services.PublishRequest, error) {
	creator, err := r.Creator.ToIdentity()
	if err != nil {
		return services.PublishRequest{}, err
	}
	return services.PublishRequest{
		ContentHash:        r.ContentHash,
		RequiredSignatures: r.RequiredSignatures,
		IdentityPolicy:     models.IdentityPolicy(r.IdentityPolicy),
		Recipients:         r.Recipients,
		Creator:            creator,
	}, nil
}

func (r SubmitRequest) ToService() (services.SubmitRequest, error) {
	id, proof, err := Claim(r.Identity, r.Proof)
	if err != nil {
		return services.SubmitRequest{}, err
	}
	return services.SubmitRequest{
		DocumentID:  r.DocumentID,
		ContentHash: r.ContentHash,
		Identity:    id,
		Proof:       proof,
	}, nil
}

func NewSignatureResult(r *services.SignatureResult) SignatureResult {
	return SignatureResult{
		Outcome:             string(r.Outcome),
		DocumentID:          r.DocumentID,
		AttestationRecordID: r.AttestationRecordID,
		AttestationToken:    r.AttestationToken,
		OrphanRecordID:      r.OrphanRecordID,
		Position:            r.Position,
		RemainingSignatures: r.RemainingSignatures,
		IsComplete:          r.IsComplete,
		FinalAttestationID:  r.FinalAttestationID,
	}
}

func NewFinalAttestation(r *services.FinalAttestationResult) FinalAttestation {
	ids := r.SignatureRecordIDs
	if ids == nil {
		ids = []string{}
	}
	return FinalAttestation{
		DocumentID:         r.DocumentID,
		FinalAttestationID: r.FinalAttestationID,
		SignatureRecordIDs: ids,
		AlreadyFinalized:   r.AlreadyFinalized,
	}
}
