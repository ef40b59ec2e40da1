// Package leadstore holds the authoritative in-memory lead and queue state
// and mirrors every change to a Repository.
package leadstore

import (
	"context"
	"sync"
	"time"

	"crescoflow/internal/leads/domain"
	"crescoflow/internal/outbound"
	"crescoflow/platform/apperr"
	"crescoflow/platform/logger"
)

const persistTimeout = 30 * time.Second

// State is the process-wide pipeline state. All reads return copies.
// Mutations are applied in memory first and then persisted; a failed save
// is logged and retried with the next mutation or Flush.
type State struct {
	mu      sync.RWMutex
	leads   []domain.Lead
	index   map[string]int
	queue   []outbound.QueueItem
	version uint64

	persistMu sync.Mutex
	persisted uint64

	repo Repository
	log  *logger.Logger
	now  func() time.Time
}

func New(repo Repository, log *logger.Logger) *State {
	return &State{
		index: make(map[string]int),
		repo:  repo,
		log:   log,
		now:   time.Now,
	}
}

// Init loads the persisted snapshot, normalizing every lead.
func (s *State) Init(ctx context.Context) error {
	snap, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.leads = make([]domain.Lead, 0, len(snap.Leads))
	s.index = make(map[string]int, len(snap.Leads))
	for _, l := range snap.Leads {
		l = domain.Normalize(l, now)
		if _, dup := s.index[l.ID]; dup {
			continue
		}
		s.index[l.ID] = len(s.leads)
		s.leads = append(s.leads, l)
	}
	s.queue = snap.Queue
	for i := range s.queue {
		// A run that stopped mid-send leaves the item claimed. Delivery is
		// unknown, so it goes back to pending.
		if s.queue[i].Status == outbound.StatusSending {
			s.queue[i].Status = outbound.StatusPending
		}
	}
	s.log.Info("pipeline state loaded", "leads", len(s.leads), "queue", len(s.queue))
	return nil
}

// Leads returns all leads in insertion order.
func (s *State) Leads() []domain.Lead {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Lead, len(s.leads))
	for i, l := range s.leads {
		out[i] = l.Clone()
	}
	return out
}

func (s *State) Lead(id string) (domain.Lead, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return domain.Lead{}, false
	}
	return s.leads[i].Clone(), true
}

// HasCompany reports whether a lead with the same company key exists.
func (s *State) HasCompany(name string) bool {
	_, ok := s.FindByCompany(name)
	return ok
}

func (s *State) FindByCompany(name string) (domain.Lead, bool) {
	key := domain.CompanyKey(name)
	if key == "" {
		return domain.Lead{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.leads {
		if domain.CompanyKey(l.CompanyName) == key {
			return l.Clone(), true
		}
	}
	return domain.Lead{}, false
}

// Insert adds a new lead. A lead whose company already exists is rejected.
func (s *State) Insert(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	if err := domain.Validate(lead); err != nil {
		return domain.Lead{}, err
	}
	lead = domain.Normalize(lead, s.now())

	s.mu.Lock()
	if _, dup := s.index[lead.ID]; dup || s.companyIndexLocked(lead.CompanyName) >= 0 {
		s.mu.Unlock()
		return domain.Lead{}, apperr.Conflict("lead already exists: " + lead.CompanyName)
	}
	s.index[lead.ID] = len(s.leads)
	s.leads = append(s.leads, lead)
	snap, v := s.commitLocked()
	s.mu.Unlock()

	s.persist(ctx, snap, v)
	return lead.Clone(), nil
}

// UpsertByCompany inserts lead, or merges its research fields into the
// existing lead of the same company. Pipeline fields of an existing lead
// (stage, interactions, schedule, sync state) are kept.
func (s *State) UpsertByCompany(ctx context.Context, lead domain.Lead) (domain.Lead, bool, error) {
	if err := domain.Validate(lead); err != nil {
		return domain.Lead{}, false, err
	}
	lead = domain.Normalize(lead, s.now())

	s.mu.Lock()
	i := s.companyIndexLocked(lead.CompanyName)
	created := i < 0
	if created {
		if _, dup := s.index[lead.ID]; dup {
			s.mu.Unlock()
			return domain.Lead{}, false, apperr.Conflict("lead id already exists")
		}
		s.index[lead.ID] = len(s.leads)
		s.leads = append(s.leads, lead)
	} else {
		s.leads[i] = mergeResearch(s.leads[i], lead)
		lead = s.leads[i]
	}
	snap, v := s.commitLocked()
	s.mu.Unlock()

	s.persist(ctx, snap, v)
	return lead.Clone(), created, nil
}

func mergeResearch(existing, fresh domain.Lead) domain.Lead {
	out := existing.Clone()
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	pick(&out.Sector, fresh.Sector)
	pick(&out.City, fresh.City)
	pick(&out.Address, fresh.Address)
	pick(&out.Website, fresh.Website)
	pick(&out.CEOName, fresh.CEOName)
	pick(&out.CEO.FirstName, fresh.CEO.FirstName)
	pick(&out.CEO.LastName, fresh.CEO.LastName)
	pick(&out.CEO.Email, fresh.CEO.Email)
	pick(&out.CEO.Phone, fresh.CEO.Phone)
	pick(&out.CEO.LinkedIn, fresh.CEO.LinkedIn)
	pick(&out.CompanyContact.Email, fresh.CompanyContact.Email)
	pick(&out.CompanyContact.Phone, fresh.CompanyContact.Phone)
	pick(&out.Socials.Instagram, fresh.Socials.Instagram)
	pick(&out.Socials.Facebook, fresh.Socials.Facebook)
	pick(&out.Socials.LinkedIn, fresh.Socials.LinkedIn)
	pick(&out.Analysis.OfferReason, fresh.Analysis.OfferReason)
	pick(&out.Analysis.DiscoveryPath, fresh.Analysis.DiscoveryPath)
	pick(&out.Analysis.SEOStatus, fresh.Analysis.SEOStatus)
	if fresh.GoogleReviews != nil {
		r := *fresh.GoogleReviews
		out.GoogleReviews = &r
	}
	if len(fresh.PainPoints) > 0 {
		out.PainPoints = append([]string(nil), fresh.PainPoints...)
	}
	if fresh.ConfidenceScore > 0 {
		out.ConfidenceScore = fresh.ConfidenceScore
		out.WebsiteScore = fresh.WebsiteScore
		out.SEOScore = fresh.SEOScore
	}
	if out.GHLContactID == "" && fresh.GHLContactID != "" {
		out.GHLContactID = fresh.GHLContactID
		out.GHLSynced = true
	}
	return out
}

// UpdateLead applies fn to a copy of the lead and stores the result.
// The id cannot be changed by fn.
func (s *State) UpdateLead(ctx context.Context, id string, fn func(*domain.Lead) error) (domain.Lead, error) {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	l := s.leads[i].Clone()
	if err := fn(&l); err != nil {
		s.mu.Unlock()
		return domain.Lead{}, err
	}
	l.ID = id
	s.leads[i] = l
	snap, v := s.commitLocked()
	s.mu.Unlock()

	s.persist(ctx, snap, v)
	return l.Clone(), nil
}

// StageChange moves one lead from one stage to another.
type StageChange struct {
	LeadID string
	From   domain.Stage
	To     domain.Stage
}

// ApplyStages applies each change whose lead still sits in From and returns
// the changes that were applied. Changes computed from a stale read are
// dropped rather than overwriting a newer stage.
func (s *State) ApplyStages(ctx context.Context, changes []StageChange) []StageChange {
	if len(changes) == 0 {
		return nil
	}
	s.mu.Lock()
	var applied []StageChange
	for _, c := range changes {
		i, ok := s.index[c.LeadID]
		if !ok || s.leads[i].PipelineTag != c.From {
			continue
		}
		s.leads[i].PipelineTag = c.To
		applied = append(applied, c)
	}
	if len(applied) == 0 {
		s.mu.Unlock()
		return nil
	}
	snap, v := s.commitLocked()
	s.mu.Unlock()

	s.persist(ctx, snap, v)
	return applied
}

// ArchiveLead flags a lead as archived and drops its pending queue items.
// Sent history is kept. Archiving twice is a no-op.
func (s *State) ArchiveLead(ctx context.Context, id string) (domain.Lead, error) {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	if s.leads[i].Archived {
		l := s.leads[i].Clone()
		s.mu.Unlock()
		return l, nil
	}
	s.leads[i].Archived = true

	kept := s.queue[:0]
	for _, it := range s.queue {
		if it.LeadID == id && it.Status == outbound.StatusPending {
			continue
		}
		kept = append(kept, it)
	}
	s.queue = kept
	l := s.leads[i].Clone()
	snap, v := s.commitLocked()
	s.mu.Unlock()

	s.persist(ctx, snap, v)
	return l, nil
}

// Queue returns all queue items.
func (s *State) Queue() []outbound.QueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]outbound.QueueItem, len(s.queue))
	for i, it := range s.queue {
		out[i] = cloneItem(it)
	}
	return out
}

func (s *State) AppendQueue(ctx context.Context, items []outbound.QueueItem) error {
	if len(items) == 0 {
		return nil
	}
	s.mu.Lock()
	for _, it := range items {
		s.queue = append(s.queue, cloneItem(it))
	}
	snap, v := s.commitLocked()
	s.mu.Unlock()

	s.persist(ctx, snap, v)
	return nil
}

func (s *State) UpdateQueueItem(ctx context.Context, id string, fn func(*outbound.QueueItem) error) (outbound.QueueItem, error) {
	s.mu.Lock()
	i := s.queueIndexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return outbound.QueueItem{}, apperr.NotFound("queue item not found")
	}
	it := cloneItem(s.queue[i])
	if err := fn(&it); err != nil {
		s.mu.Unlock()
		return outbound.QueueItem{}, err
	}
	it.ID = id
	s.queue[i] = it
	snap, v := s.commitLocked()
	s.mu.Unlock()

	s.persist(ctx, snap, v)
	return cloneItem(it), nil
}

// ChangeQueue runs plan against the current leads and queue and applies
// the change it returns before any other mutation can interleave. Updates
// for unknown ids fail the whole change.
func (s *State) ChangeQueue(ctx context.Context, plan outbound.QueuePlanner) (outbound.QueueChange, error) {
	s.mu.Lock()
	leads := make([]domain.Lead, len(s.leads))
	for i, l := range s.leads {
		leads[i] = l.Clone()
	}
	queue := make([]outbound.QueueItem, len(s.queue))
	for i, it := range s.queue {
		queue[i] = cloneItem(it)
	}

	change, err := plan(leads, queue)
	if err != nil || change.Empty() {
		s.mu.Unlock()
		return outbound.QueueChange{}, err
	}
	positions := make([]int, len(change.Update))
	for n, it := range change.Update {
		i := s.queueIndexLocked(it.ID)
		if i < 0 {
			s.mu.Unlock()
			return outbound.QueueChange{}, apperr.NotFound("queue item not found")
		}
		positions[n] = i
	}
	for n, it := range change.Update {
		s.queue[positions[n]] = cloneItem(it)
	}
	for _, it := range change.Append {
		s.queue = append(s.queue, cloneItem(it))
	}
	snap, v := s.commitLocked()
	s.mu.Unlock()

	s.persist(ctx, snap, v)
	return change, nil
}

func (s *State) RemoveQueueItem(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.queueIndexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return apperr.NotFound("queue item not found")
	}
	s.queue = append(s.queue[:i], s.queue[i+1:]...)
	snap, v := s.commitLocked()
	s.mu.Unlock()

	s.persist(ctx, snap, v)
	return nil
}

// Flush saves the current state if it has changes that were not persisted.
func (s *State) Flush(ctx context.Context) error {
	s.mu.RLock()
	snap, v := s.snapshotLocked(), s.version
	s.mu.RUnlock()
	return s.save(ctx, snap, v)
}

// Dirty reports whether the latest in-memory version is not yet persisted.
func (s *State) Dirty() bool {
	s.mu.RLock()
	v := s.version
	s.mu.RUnlock()
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	return v > s.persisted
}

func (s *State) commitLocked() (Snapshot, uint64) {
	s.version++
	return s.snapshotLocked(), s.version
}

func (s *State) snapshotLocked() Snapshot {
	return copySnapshot(Snapshot{Leads: s.leads, Queue: s.queue})
}

func (s *State) persist(ctx context.Context, snap Snapshot, v uint64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.save(ctx, snap, v); err != nil {
		s.log.DatabaseError("persist pipeline state", err)
	}
}

// save writes snap unless a newer or equal version was already written.
func (s *State) save(ctx context.Context, snap Snapshot, v uint64) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if v <= s.persisted {
		return nil
	}
	if err := s.repo.Save(ctx, snap); err != nil {
		return err
	}
	s.persisted = v
	return nil
}

func (s *State) companyIndexLocked(name string) int {
	key := domain.CompanyKey(name)
	if key == "" {
		return -1
	}
	for i, l := range s.leads {
		if domain.CompanyKey(l.CompanyName) == key {
			return i
		}
	}
	return -1
}

func (s *State) queueIndexLocked(id string) int {
	for i, it := range s.queue {
		if it.ID == id {
			return i
		}
	}
	return -1
}
