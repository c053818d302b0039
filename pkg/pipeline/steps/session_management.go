package steps

import (
	"context"
	"sync"
	"time"

	"github.com/healthconcierge/wa-concierge/pkg/convstate"
	"github.com/healthconcierge/wa-concierge/pkg/convstore"
	"github.com/healthconcierge/wa-concierge/pkg/memory"
	"github.com/healthconcierge/wa-concierge/pkg/pipeline"
)

// OrganizationResolver maps a webhook's raw organization/instance
// identifier onto the concierge's own clinic ID.
type OrganizationResolver interface {
	ClinicIDForOrganization(ctx context.Context, organizationID string) (string, error)
}

// orgClinicCache is a small per-process TTL cache in front of
// OrganizationResolver, so a burst of inbound messages from the same
// instance doesn't each pay a lookup round-trip.
type orgClinicCache struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]cachedClinicID
}

type cachedClinicID struct {
	clinicID  string
	expiresAt time.Time
}

func newOrgClinicCache(ttl time.Duration) *orgClinicCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &orgClinicCache{ttl: ttl, m: make(map[string]cachedClinicID)}
}

func (c *orgClinicCache) get(organizationID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.m[organizationID]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.clinicID, true
}

func (c *orgClinicCache) set(organizationID, clinicID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[organizationID] = cachedClinicID{clinicID: clinicID, expiresAt: time.Now().Add(c.ttl)}
}

// SessionManagementStep resolves the clinic for the inbound organization,
// loads or creates the session, records the inbound message, and kicks
// off an asynchronous clinic-memory warmup.
type SessionManagementStep struct {
	Store    convstore.ConversationStore
	Resolver OrganizationResolver
	Writer   memory.Writer

	cache *orgClinicCache
}

// NewSessionManagementStep builds a SessionManagementStep with its
// organization→clinic cache initialized.
func NewSessionManagementStep(store convstore.ConversationStore, resolver OrganizationResolver, writer memory.Writer, cacheTTL time.Duration) *SessionManagementStep {
	return &SessionManagementStep{Store: store, Resolver: resolver, Writer: writer, cache: newOrgClinicCache(cacheTTL)}
}

func (s *SessionManagementStep) Name() string { return "session_management" }

func (s *SessionManagementStep) Execute(ctx context.Context, pc *pipeline.Context) (bool, error) {
	if pc.ClinicID == "" && pc.OrganizationID != "" && s.Resolver != nil {
		if clinicID, ok := s.cache.get(pc.OrganizationID); ok {
			pc.ClinicID = clinicID
		} else {
			clinicID, err := s.Resolver.ClinicIDForOrganization(ctx, pc.OrganizationID)
			if err != nil {
				return false, err
			}
			s.cache.set(pc.OrganizationID, clinicID)
			pc.ClinicID = clinicID
		}
	}

	initial := convstore.Session{
		ClinicID:       pc.ClinicID,
		UserIdentifier: pc.Phone,
		Channel:        pc.Channel,
		State:          convstate.NewState(convstate.EpisodeGeneral),
	}
	session, err := s.Store.GetOrCreate(ctx, pc.Phone, pc.ClinicID, pc.Channel, initial)
	if err != nil {
		return false, err
	}
	pc.Session = session

	pendingHumanReview := session.State.ControlMode != convstate.ControlAgent
	if err := s.Store.AppendMessage(ctx, convstore.Message{
		SessionID: session.ID,
		Role:      convstore.RoleUser,
		Content:   pc.InboundText,
		Metadata: convstore.MessageMetadata{
			CorrelationID:      pc.CorrelationID,
			PendingHumanReview: pendingHumanReview,
		},
	}); err != nil {
		return false, err
	}

	if s.Writer != nil {
		s.Writer.ScheduleWarmup(pc.ClinicID, pc.Phone, false)
	}

	return true, nil
}
