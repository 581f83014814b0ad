package model

import (
	"time"
)

// Client and Business are owned by the surrounding application. The portal
// core only reads them: the client's business_id is the source of truth used
// for scope-drift detection.
type Client struct {
	ID         string    `db:"id" json:"id"`
	BusinessID string    `db:"business_id" json:"businessId"`
	Name       string    `db:"name" json:"name"`
	Email      *string   `db:"email" json:"email,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

type Business struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Document is the estimate/invoice record. The portal core may only touch
// estimate_status, estimate_accepted_at and updated_at; everything else
// belongs to the main application.
type Document struct {
	ID                 string         `db:"id" json:"id"`
	BusinessID         string         `db:"business_id" json:"businessId"`
	ClientID           string         `db:"client_id" json:"clientId"`
	DocType            DocType        `db:"doc_type" json:"docType"`
	Title              string         `db:"title" json:"title"`
	EstimateStatus     EstimateStatus `db:"estimate_status" json:"estimateStatus"`
	EstimateAcceptedAt *time.Time     `db:"estimate_accepted_at" json:"estimateAcceptedAt,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updatedAt"`
}

// Contract is the signable agreement record. The portal core may only set
// status, signed_at, signed_by_name and updated_at.
type Contract struct {
	ID           string         `db:"id" json:"id"`
	BusinessID   string         `db:"business_id" json:"businessId"`
	ClientID     string         `db:"client_id" json:"clientId"`
	DocumentID   *string        `db:"document_id" json:"documentId,omitempty"`
	Status       ContractStatus `db:"status" json:"status"`
	Title        string         `db:"title" json:"title"`
	Body         string         `db:"body" json:"body"`
	SignedAt     *time.Time     `db:"signed_at" json:"signedAt,omitempty"`
	SignedByName *string        `db:"signed_by_name" json:"signedByName,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updatedAt"`
}
