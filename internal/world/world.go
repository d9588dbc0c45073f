package world

import (
	"context"
	"time"
)

// World answers read-only questions about the agent's surroundings.
type World interface {
	Self(ctx context.Context) (Self, error)
	Inventory(ctx context.Context) (map[string]int, error)
	Bundles(ctx context.Context) ([]Bundle, error)
	// FindBlocks returns positions of the named block within radius, nearest first.
	FindBlocks(ctx context.Context, name string, radius int) ([]Vec3, error)
	BlockAt(ctx context.Context, pos Vec3) (string, error)
	// FindEntities returns entities of the given type within radius, nearest first.
	FindEntities(ctx context.Context, typ string, radius int) ([]Entity, error)
}

type Navigator interface {
	// MoveTo blocks until the agent is within proximity of pos, the target is
	// unreachable, or ctx is done.
	MoveTo(ctx context.Context, pos Vec3, proximity float64) error
}

// ContainerHandle is an open container UI. At most one is open at a time.
type ContainerHandle interface {
	ID() string
	Stock(ctx context.Context) (map[string]int, error)
	Withdraw(ctx context.Context, item string, n int) (int, error)
	Close() error
}

type Interactor interface {
	Equip(ctx context.Context, item string) error
	Dig(ctx context.Context, pos Vec3) error
	// Place puts item down next to the agent and returns where it went.
	Place(ctx context.Context, item string) (Vec3, error)
	OpenContainer(ctx context.Context, rec ContainerRecord) (ContainerHandle, error)
	Unbundle(ctx context.Context, bundleID, item string, n int) error
	// Craft runs recipeID times times; surface is nil for hand recipes.
	Craft(ctx context.Context, recipeID string, times int, surface *Vec3) error
	Cook(ctx context.Context, recipeID string, times int, source Vec3, fuel string) error
	// Trade performs one repetition of offer with partnerID.
	Trade(ctx context.Context, partnerID string, offer TradeOffer) error
	Interact(ctx context.Context, entityID, tool string) error
	// Collect picks up n of item left for the agent at pos.
	Collect(ctx context.Context, pos Vec3, item string, n int) error
}

type Chat interface {
	Say(ctx context.Context, text string) error
	Whisper(ctx context.Context, to, text string) error
	Give(ctx context.Context, to, item string, n int) error
	// Gifts delivers transfers received from other players.
	Gifts() <-chan Gift
}

type ContainerRecords interface {
	Containers(ctx context.Context) ([]ContainerRecord, error)
	UpdateContainer(ctx context.Context, rec ContainerRecord) error
}

type TradePartners interface {
	Partners(ctx context.Context) ([]TradePartner, error)
}

// Claims is the advisory shared-state registry agents coordinate through.
// Nothing enforces a claim; well-behaved agents check before acting.
type Claims interface {
	Claim(ctx context.Context, resource, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, resource, owner string) error

	// SetSpare advertises stock an agent is not using; Spare lists peers.
	SetSpare(ctx context.Context, agentID string, stock map[string]int) error
	Spare(ctx context.Context, item string) ([]PeerSpare, error)

	Reserve(ctx context.Context, r Reservation) (Reservation, error)
	Reservation(ctx context.Context, id string) (Reservation, error)
	UpdateReservation(ctx context.Context, r Reservation) error
	CancelReservation(ctx context.Context, id string) error
}

// Env bundles every collaborator an agent needs.
type Env struct {
	World      World
	Navigator  Navigator
	Interactor Interactor
	Chat       Chat
	Containers ContainerRecords
	Traders    TradePartners
	Claims     Claims
}
