package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxBoardTitle       = 100
	maxBoardDescription = 500
)

type Board struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	OwnerID     uuid.UUID   `json:"ownerId"`
	Members     []uuid.UUID `json:"members"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// NewBoard creates a Board owned by ownerID. The owner is always a member.
func NewBoard(ownerID uuid.UUID, title, description string) (*Board, error) {
	if ownerID == uuid.Nil {
		return nil, invalid("ownerId", "board owner is required")
	}
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if err := validateBoardTitle(title); err != nil {
		return nil, err
	}
	if err := validateBoardDescription(description); err != nil {
		return nil, err
	}
	now := time.Now()
	return &Board{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		OwnerID:     ownerID,
		Members:     []uuid.UUID{ownerID},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// HasMember reports whether userID is the owner or a listed member. This is
// the single authorization check shared by the socket and HTTP surfaces.
func (b *Board) HasMember(userID uuid.UUID) bool {
	if b == nil || userID == uuid.Nil {
		return false
	}
	if b.OwnerID == userID {
		return true
	}
	for _, m := range b.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// IsOwner reports whether userID owns the board.
func (b *Board) IsOwner(userID uuid.UUID) bool {
	return b != nil && userID != uuid.Nil && b.OwnerID == userID
}

// NormalizeMembers deduplicates members and makes sure the owner is listed.
func NormalizeMembers(ownerID uuid.UUID, members []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(members)+1)
	out := make([]uuid.UUID, 0, len(members)+1)
	out = append(out, ownerID)
	seen[ownerID] = struct{}{}
	for _, m := range members {
		if m == uuid.Nil {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// BoardPatch carries a partial board update. Nil fields are left untouched.
type BoardPatch struct {
	Title       *string
	Description *string
	Members     *[]uuid.UUID
}

// TouchesMembers reports whether the patch needs owner rights.
func (p BoardPatch) TouchesMembers() bool { return p.Members != nil }

// Apply validates the patch and writes it onto b.
func (b *Board) Apply(p BoardPatch) error {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if err := validateBoardTitle(title); err != nil {
			return err
		}
		b.Title = title
	}
	if p.Description != nil {
		desc := strings.TrimSpace(*p.Description)
		if err := validateBoardDescription(desc); err != nil {
			return err
		}
		b.Description = desc
	}
	if p.Members != nil {
		b.Members = NormalizeMembers(b.OwnerID, *p.Members)
	}
	b.UpdatedAt = time.Now()
	return nil
}

func validateBoardTitle(title string) error {
	if title == "" {
		return invalid("title", "board title is required")
	}
	if len([]rune(title)) > maxBoardTitle {
		return invalid("title", "board title cannot exceed 100 characters")
	}
	return nil
}

func validateBoardDescription(desc string) error {
	if len([]rune(desc)) > maxBoardDescription {
		return invalid("description", "board description cannot exceed 500 characters")
	}
	return nil
}

type BoardRepository interface {
	Create(ctx context.Context, b *Board) error
	GetByID(ctx context.Context, id uuid.UUID) (*Board, error)
	Update(ctx context.Context, b *Board) error
	ListByMember(ctx context.Context, userID uuid.UUID) ([]*Board, error)
}
