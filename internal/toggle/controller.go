// Package toggle drives the bookmark button of a single title view with optimistic updates.
package toggle

import (
	"context"
	"errors"
	"sync"

	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/bookmarks"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/users"
	"go.uber.org/zap"
)

// State is the bookmark state shown to the user.
type State int

const (
	NotBookmarked State = iota
	Bookmarked
)

func (s State) String() string {
	if s == Bookmarked {
		return "bookmarked"
	}
	return "not_bookmarked"
}

// Action names the transition a Result settles.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

var (
	// ErrAuthenticationRequired is returned when nobody is signed in; no state changes and no store calls happen.
	ErrAuthenticationRequired = errors.New("toggle: authentication required")
	// ErrTransitionInFlight is returned when a toggle is requested before the previous one settled.
	ErrTransitionInFlight = errors.New("toggle: transition in flight")
	// ErrControllerClosed is returned after the view has gone away.
	ErrControllerClosed = errors.New("toggle: controller closed")

	errMissingRepository = errors.New("toggle: repository is required")
	errMissingSessions   = errors.New("toggle: session source is required")
	errInvalidTitle      = errors.New("toggle: title snapshot requires an id and a media type")
	errNotConfirmed      = errors.New("toggle: bookmark not found after insert")
)

// Repository is the slice of the bookmark repository the controller relies on.
type Repository interface {
	BookmarkExists(ctx context.Context, userID string, externalID int64, mediaType bookmarks.MediaType) (*bookmarks.Record, error)
	Insert(ctx context.Context, record bookmarks.Record) (bookmarks.Record, error)
	Delete(ctx context.Context, mediaType bookmarks.MediaType, id string) error
}

// Result reports how a transition settled.
type Result struct {
	Action     Action
	State      State
	BookmarkID string
	UserID     string
	Record     *bookmarks.Record
	Err        error
}

// ControllerConfig describes one controller bound to a title view.
type ControllerConfig struct {
	Repository Repository
	Sessions   users.SessionSource
	Title      bookmarks.Record
	Logger     *zap.Logger
	Observer   func(Result)
}

// Controller holds the bookmark state of one title for the current user.
type Controller struct {
	repository Repository
	sessions   users.SessionSource
	title      bookmarks.Record
	logger     *zap.Logger
	observer   func(Result)

	viewCtx context.Context
	cancel  context.CancelFunc

	mu         sync.Mutex
	state      State
	bookmarkID string
	inFlight   bool
	closed     bool
}

// NewController binds a controller to the view context; cancelling it has the same effect as Close.
func NewController(viewCtx context.Context, cfg ControllerConfig) (*Controller, error) {
	if cfg.Repository == nil {
		return nil, errMissingRepository
	}
	if cfg.Sessions == nil {
		return nil, errMissingSessions
	}
	if cfg.Title.ExternalID <= 0 {
		return nil, errInvalidTitle
	}
	if _, err := cfg.Title.MediaType.Collection(); err != nil {
		return nil, errInvalidTitle
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(viewCtx)
	return &Controller{
		repository: cfg.Repository,
		sessions:   cfg.Sessions,
		title:      cfg.Title,
		logger:     logger.With(zap.Int64("external_id", cfg.Title.ExternalID), zap.String("media_type", string(cfg.Title.MediaType))),
		observer:   cfg.Observer,
		viewCtx:    ctx,
		cancel:     cancel,
		state:      NotBookmarked,
	}, nil
}

// State returns the current state and the bookmark id, empty when not bookmarked.
func (c *Controller) State() (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.bookmarkID
}

// Close detaches the controller from its view. Pending transitions are cancelled and never touch the state.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
}

// Load reads the stored bookmark for the current user and adopts it as the initial state.
func (c *Controller) Load(ctx context.Context) error {
	session := c.sessions.CurrentSession()
	if !session.Authenticated() {
		c.apply(func() {
			c.state = NotBookmarked
			c.bookmarkID = ""
		})
		return nil
	}
	existing, err := c.repository.BookmarkExists(ctx, session.UserID, c.title.ExternalID, c.title.MediaType)
	if err != nil {
		c.logger.Warn("bookmark status check failed", zap.String("user_id", session.UserID), zap.Error(err))
		return err
	}
	c.apply(func() {
		if existing != nil {
			c.state = Bookmarked
			c.bookmarkID = existing.ID
			return
		}
		c.state = NotBookmarked
		c.bookmarkID = ""
	})
	return nil
}

// apply runs update unless the controller is closed or a transition owns the state.
func (c *Controller) apply(update func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.inFlight {
		return
	}
	update()
}

// Toggle flips the state optimistically and settles it in the background.
// The returned channel receives exactly one Result.
func (c *Controller) Toggle() (<-chan Result, error) {
	session := c.sessions.CurrentSession()
	if !session.Authenticated() {
		return nil, ErrAuthenticationRequired
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrControllerClosed
	}
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrTransitionInFlight
	}
	c.inFlight = true
	results := make(chan Result, 1)
	if c.state == Bookmarked {
		previousID := c.bookmarkID
		c.state = NotBookmarked
		c.bookmarkID = ""
		c.mu.Unlock()
		go c.remove(*session, previousID, results)
		return results, nil
	}
	c.state = Bookmarked
	c.mu.Unlock()
	go c.add(*session, results)
	return results, nil
}

func (c *Controller) add(session users.Session, results chan<- Result) {
	ctx := c.viewCtx
	result := Result{Action: ActionAdd, UserID: session.UserID}

	record, err := c.ensureBookmark(ctx, session)
	if err != nil {
		c.logger.Warn("bookmark add failed", zap.String("user_id", session.UserID), zap.Error(err))
		result.Err = err
		c.settle(results, result, func() {
			c.state = NotBookmarked
			c.bookmarkID = ""
		})
		return
	}
	result.Record = record
	result.BookmarkID = record.ID
	c.settle(results, result, func() {
		c.state = Bookmarked
		c.bookmarkID = record.ID
	})
}

func (c *Controller) ensureBookmark(ctx context.Context, session users.Session) (*bookmarks.Record, error) {
	existing, err := c.repository.BookmarkExists(ctx, session.UserID, c.title.ExternalID, c.title.MediaType)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	record := c.title
	record.ID = ""
	record.UserID = session.UserID
	record.UserName = session.NameOrAnonymous()
	if _, err := c.repository.Insert(ctx, record); err != nil && !errors.Is(err, bookmarks.ErrAlreadyBookmarked) {
		return nil, err
	}

	confirmed, err := c.repository.BookmarkExists(ctx, session.UserID, c.title.ExternalID, c.title.MediaType)
	if err != nil {
		return nil, err
	}
	if confirmed == nil {
		return nil, errNotConfirmed
	}
	return confirmed, nil
}

func (c *Controller) remove(session users.Session, previousID string, results chan<- Result) {
	ctx := c.viewCtx
	result := Result{Action: ActionRemove, UserID: session.UserID, BookmarkID: previousID}

	targetID := previousID
	if targetID == "" {
		targetID = bookmarks.DocumentID(session.UserID, c.title.ExternalID, c.title.MediaType)
	}
	if err := c.repository.Delete(ctx, c.title.MediaType, targetID); err != nil {
		c.logger.Warn("bookmark remove failed", zap.String("user_id", session.UserID), zap.Error(err))
		result.Err = err
		c.settle(results, result, func() {
			c.state = Bookmarked
			c.bookmarkID = previousID
		})
		return
	}
	c.settle(results, result, func() {
		c.state = NotBookmarked
		c.bookmarkID = ""
	})
}

// settle applies the final state, releases the transition and publishes the result.
// A closed controller keeps its state and reports ErrControllerClosed.
func (c *Controller) settle(results chan<- Result, result Result, update func()) {
	c.mu.Lock()
	c.inFlight = false
	closed := c.closed
	if !closed {
		update()
	}
	result.State = c.state
	c.mu.Unlock()

	if closed {
		if result.Err == nil {
			result.Err = ErrControllerClosed
		} else {
			result.Err = errors.Join(ErrControllerClosed, result.Err)
		}
	} else if c.observer != nil {
		c.observer(result)
	}
	results <- result
	close(results)
}
