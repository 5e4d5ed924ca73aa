package services

import (
	"strings"
	"unicode/utf8"

	"quadvote/contexts/governance/quadratic-voting/domain/entities"
	domainerrors "quadvote/contexts/governance/quadratic-voting/domain/errors"
)

const (
	DefaultMaxDAONameLength  = 32
	DefaultMaxMetadataLength = 256
)

// ProposalPolicy decides who may open proposals under a DAO.
type ProposalPolicy string

const (
	// ProposalPolicyOpen lets any authenticated caller create proposals.
	ProposalPolicyOpen ProposalPolicy = "open"
	// ProposalPolicyAuthorityOnly restricts proposals to the DAO authority.
	ProposalPolicyAuthorityOnly ProposalPolicy = "authority_only"
)

func ParseProposalPolicy(raw string) (ProposalPolicy, bool) {
	switch ProposalPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ProposalPolicyOpen:
		return ProposalPolicyOpen, true
	case ProposalPolicyAuthorityOnly:
		return ProposalPolicyAuthorityOnly, true
	default:
		return "", false
	}
}

// AuthorizeProposal applies the policy to a caller creating a proposal
// under dao.
func (p ProposalPolicy) AuthorizeProposal(dao entities.DAO, callerID string) error {
	if p != ProposalPolicyAuthorityOnly {
		return nil
	}
	if strings.TrimSpace(dao.Authority) != strings.TrimSpace(callerID) {
		return domainerrors.ErrForbidden
	}
	return nil
}

// BoundedText trims value and rejects empty, oversized (in bytes) or
// non-UTF-8 input.
func BoundedText(value string, maxBytes int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" || !utf8.ValidString(value) {
		return "", domainerrors.ErrInvalidInput
	}
	if maxBytes > 0 && len(value) > maxBytes {
		return "", domainerrors.ErrInvalidInput
	}
	return value, nil
}
