package app

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"agri_rental/internal/domain/contract"
	idb "agri_rental/internal/infra/database"
	"agri_rental/internal/infra/metrics"
)

// DocumentRenderer writes the printable document of a contract and returns
// where it was stored.
type DocumentRenderer interface {
	Render(ctx context.Context, c *contract.Contract) (string, error)
}

// ContractDocuments produces contract documents independently of approval.
// A failure here never touches the contract's status.
type ContractDocuments struct {
	contracts contract.Repository
	renderer  DocumentRenderer
	logger    *logrus.Entry
}

func NewContractDocuments(contracts contract.Repository, renderer DocumentRenderer, logger *logrus.Entry) *ContractDocuments {
	return &ContractDocuments{
		contracts: contracts,
		renderer:  renderer,
		logger:    logger.WithField("component", "contract_documents"),
	}
}

// Generate renders the document of a contract and records its path. Calling it
// again re-renders and overwrites the previous document.
func (d *ContractDocuments) Generate(ctx context.Context, contractID int64) (string, error) {
	c, err := d.contracts.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, idb.ErrContractNotFound) {
			return "", notFound("contract", contractID)
		}
		d.logger.WithError(err).WithField("contract_id", contractID).Error("Failed to load contract for document")
		return "", err
	}
	return d.generate(ctx, c)
}

func (d *ContractDocuments) generate(ctx context.Context, c *contract.Contract) (string, error) {
	log := d.logger.WithField("contract_id", c.ID)

	path, err := d.renderer.Render(ctx, c)
	if err == nil {
		err = d.contracts.SetDocumentPath(ctx, c.ID, path)
	}
	metrics.ObserveTransition("generate_contract_document", string(KindOf(err)))
	if err != nil {
		log.WithError(err).Error("Failed to generate contract document")
		return "", err
	}

	log.WithField("path", path).Info("Contract document generated")
	return path, nil
}

// Download returns the document path for the contract's tenant, generating the
// document first if it does not exist yet. Other users get ErrNotFound.
func (d *ContractDocuments) Download(ctx context.Context, contractID, userID int64) (string, error) {
	c, err := d.contracts.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, idb.ErrContractNotFound) {
			return "", notFound("contract", contractID)
		}
		return "", err
	}
	if c.UserID != userID {
		d.logger.WithFields(logrus.Fields{"contract_id": contractID, "user_id": userID}).Warn("Contract document requested by a non-tenant")
		return "", notFound("contract", contractID)
	}

	if c.PDFFilePath.Valid && c.PDFFilePath.String != "" {
		return c.PDFFilePath.String, nil
	}
	return d.generate(ctx, c)
}
