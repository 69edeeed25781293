package repository

import (
	"time"

	"github.com/google/uuid"
)

// Roles
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Card types
const (
	CardTypeTalisman = "TALISMAN"
	CardTypeArma     = "ARMA"
	CardTypeTotem    = "TOTEM"
	CardTypeAliado   = "ALIADO"
	CardTypeOro      = "ORO"
)

// Card rarities
const (
	RarityVasallo    = "VASALLO"
	RarityCortesano  = "CORTESANO"
	RarityReal       = "REAL"
	RarityMegaReal   = "MEGA_REAL"
	RarityUltraReal  = "ULTRA_REAL"
	RarityLegendaria = "LEGENDARIA"
	RarityPromo      = "PROMO"
	RaritySecreta    = "SECRETA"
)

// CardTypes lists every valid card type
var CardTypes = []string{CardTypeTalisman, CardTypeArma, CardTypeTotem, CardTypeAliado, CardTypeOro}

// Rarities lists every valid rarity
var Rarities = []string{
	RarityVasallo, RarityCortesano, RarityReal, RarityMegaReal,
	RarityUltraReal, RarityLegendaria, RarityPromo, RaritySecreta,
}

// User represents a user account in the database
type User struct {
	ID           uuid.UUID `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Session represents an authentication session in the database.
// Only the SHA-256 hash of the bearer token is stored.
type Session struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// PasswordResetToken represents a pending credential reset
type PasswordResetToken struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// Card represents a single printing in the catalog
type Card struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Type        string    `db:"type" json:"type"`
	Cost        *int      `db:"cost" json:"cost"`
	Attack      *int      `db:"attack" json:"attack"`
	Defense     *int      `db:"defense" json:"defense"`
	Description string    `db:"description" json:"description"`
	ImageFile   *string   `db:"image_file" json:"image_file"`
	Rarity      string    `db:"rarity" json:"rarity"`
	Expansion   string    `db:"expansion" json:"expansion"`
	Race        *string   `db:"race" json:"race"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ImageKey returns the image file identifier used for ordering
func (c *Card) ImageKey() string {
	if c.ImageFile == nil {
		return ""
	}
	return *c.ImageFile
}

// CardFilter holds the structural filters pushed down to the database
type CardFilter struct {
	Expansion string
	Type      string
	Race      string
	Rarity    string
	// IncludeInactive is only set for administrative listings
	IncludeInactive bool
}

// BanlistEntry is a free-text card restriction for one format
type BanlistEntry struct {
	CardName  string    `db:"card_name" json:"card_name"`
	Format    string    `db:"format" json:"format"`
	Status    string    `db:"status" json:"status"`
	MaxCopies int       `db:"max_copies" json:"max_copies"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RotationEntry marks a card name as rotated out of a format
type RotationEntry struct {
	CardName          string    `db:"card_name" json:"card_name"`
	Format            string    `db:"format" json:"format"`
	RotationExpansion string    `db:"rotation_expansion" json:"rotation_expansion"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Expansion is a card set with its display position
type Expansion struct {
	Name         string `db:"name" json:"name"`
	DisplayOrder int    `db:"display_order" json:"display_order"`
}

// DeckCard is one line of a deck list
type DeckCard struct {
	CardID   uuid.UUID `json:"card_id"`
	Quantity int       `json:"quantity"`
}

// Deck represents a user-built deck. Cards and Sideboard are stored as jsonb.
type Deck struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description"`
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	Race        string     `db:"race" json:"race"`
	Format      string     `db:"format" json:"format"`
	IsPublic    bool       `db:"is_public" json:"is_public"`
	Cards       []DeckCard `db:"cards" json:"cards"`
	Sideboard   []DeckCard `db:"sideboard" json:"sideboard"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// DeckSummary is a public deck with its owner and like count
type DeckSummary struct {
	Deck
	Username   string `db:"username" json:"username"`
	LikesCount int    `db:"likes_count" json:"likes_count"`
}

// ListPublicDecksParams holds parameters for the community listing
type ListPublicDecksParams struct {
	Page   int
	Limit  int
	SortBy string
	Race   string
}

// DeckLike is a (deck, user) toggle row
type DeckLike struct {
	ID        uuid.UUID `db:"id"`
	DeckID    uuid.UUID `db:"deck_id"`
	UserID    uuid.UUID `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}
