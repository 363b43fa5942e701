package weather

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of the active lookup.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// airQualityTimeout bounds the background AQI call, which outlives the request that started it.
const airQualityTimeout = 10 * time.Second

// State is the observable, view-ready result of the latest lookup.
// Loading reports a lookup in flight. It can be true together with
// StatusFailed when a search is rejected while an earlier lookup runs;
// that lookup still settles the state when it completes.
type State struct {
	LookupID string           `json:"lookupId,omitempty"`
	Status   Status           `json:"status"`
	Loading  bool             `json:"loading"`
	Error    string           `json:"error,omitempty"`
	Unit     Unit             `json:"unit"`
	Query    string           `json:"query,omitempty"`
	Current  *CurrentSnapshot `json:"current,omitempty"`
	Daily    []DailyBucket    `json:"daily"`
	Hourly   []HourlyPoint    `json:"hourly"`
}

func (s State) clone() State {
	out := s
	if s.Current != nil {
		cur := *s.Current
		if s.Current.AirQualityIndex != nil {
			aqi := *s.Current.AirQualityIndex
			cur.AirQualityIndex = &aqi
		}
		out.Current = &cur
	}
	out.Daily = append([]DailyBucket{}, s.Daily...)
	out.Hourly = append([]HourlyPoint{}, s.Hourly...)
	return out
}

// ticket stamps every asynchronous completion with the lookup it belongs to.
type ticket struct {
	gen uint64
	id  string
}

// Service orchestrates the provider calls of a lookup and owns the current state.
// It is the only writer of the snapshot; readers get copies through State.
type Service struct {
	provider       Provider
	prefs          Preferences
	locator        Locator
	zone           *time.Location
	defaultCountry string
	observers      []Observer

	mu           sync.Mutex
	gen          uint64
	committedGen uint64
	state        State
	active       LastLookup
	pendingAQI   *int

	// notifyMu keeps observers seeing states in the order they happened.
	notifyMu sync.Mutex

	bg sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithLocator sets the device location source used by UseCurrentLocation.
func WithLocator(l Locator) Option {
	return func(s *Service) { s.locator = l }
}

// WithDisplayZone sets the zone used for hourly clock times.
func WithDisplayZone(zone *time.Location) Option {
	return func(s *Service) { s.zone = zone }
}

// WithDefaultCountry sets the country paired with postal-code searches.
func WithDefaultCountry(country string) Option {
	return func(s *Service) { s.defaultCountry = country }
}

// WithObserver registers an observer of state changes.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observers = append(s.observers, o) }
}

// NewService creates a new Service.
func NewService(provider Provider, prefs Preferences, opts ...Option) *Service {
	s := &Service{
		provider:       provider,
		prefs:          prefs,
		zone:           time.Local,
		defaultCountry: "TR",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.state = State{
		Status: StatusIdle,
		Unit:   prefs.Unit(),
		Daily:  []DailyBucket{},
		Hourly: []HourlyPoint{},
	}
	return s
}

// State returns a copy of the current state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Search looks up the weather for a city name or postal code.
// The current weather is fetched first; the forecast then uses the
// resolved place, and the air quality the resolved coordinates.
func (s *Service) Search(ctx context.Context, text string) error {
	req, err := ParseQuery(text, s.defaultCountry)
	if err != nil {
		// A rejected query does not cancel a lookup already in flight,
		// so Loading is left as it is.
		s.mu.Lock()
		s.state.Status = StatusFailed
		s.state.Error = UserMessage(err)
		s.mu.Unlock()
		s.notify()
		return err
	}

	q := strings.TrimSpace(text)
	t, unit := s.begin(LastLookup{Query: q}, q)

	if s.provider == nil {
		return s.fail(t, errNoProvider)
	}

	rawCurrent, err := s.provider.Current(ctx, req, unit)
	if err != nil {
		return s.fail(t, err)
	}
	if !s.isActive(t) {
		log.Printf("DEBUG: dropping stale current weather for %q (lookup %s)", q, t.id)
		return nil
	}

	current := NormalizeCurrent(rawCurrent)
	s.enrichAirQuality(t, current.Location.Coordinates())

	rawForecast, err := s.provider.Forecast(ctx, NameRequest(current.Location.Query()), unit)
	if err != nil {
		return s.fail(t, err)
	}

	forecast := AggregateForecast(NormalizeForecast(rawForecast), s.zone)
	s.commit(t, current, forecast)
	return nil
}

// UseCoordinates looks up the weather for a device-supplied coordinate pair.
func (s *Service) UseCoordinates(ctx context.Context, lat, lon float64) error {
	coords := Coordinates{Lat: lat, Lon: lon}
	t, unit := s.begin(LastLookup{Coords: &coords}, "")

	if s.provider == nil {
		return s.fail(t, errNoProvider)
	}

	req := CoordinateRequest(lat, lon)

	var (
		wg          sync.WaitGroup
		rawCurrent  RawCurrent
		rawForecast RawForecast
		currentErr  error
		forecastErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		rawCurrent, currentErr = s.provider.Current(ctx, req, unit)
	}()
	go func() {
		defer wg.Done()
		rawForecast, forecastErr = s.provider.Forecast(ctx, req, unit)
	}()
	wg.Wait()

	if currentErr != nil {
		return s.fail(t, currentErr)
	}
	if forecastErr != nil {
		return s.fail(t, forecastErr)
	}

	current := NormalizeCurrent(rawCurrent)
	forecast := AggregateForecast(NormalizeForecast(rawForecast), s.zone)
	if s.commit(t, current, forecast) {
		s.enrichAirQuality(t, current.Location.Coordinates())
	}
	return nil
}

// UseCurrentLocation asks the locator for the device position and looks it up.
// Every geolocation failure is surfaced because the user asked for it.
func (s *Service) UseCurrentLocation(ctx context.Context) error {
	return s.locate(ctx, false)
}

// ToggleUnit flips the unit preference and re-issues the lookup under the new unit:
// by coordinates when a snapshot exists, by text when a query is known,
// otherwise through a silent geolocation probe.
func (s *Service) ToggleUnit(ctx context.Context) error {
	unit, err := s.prefs.Toggle()
	if err != nil {
		log.Printf("ERROR: failed to persist unit %s: %v", unit, err)
	}

	s.mu.Lock()
	s.state.Unit = unit
	current := s.state.Current
	query := s.state.Query
	s.mu.Unlock()
	s.notify()

	switch {
	case current != nil:
		return s.UseCoordinates(ctx, current.Location.Lat, current.Location.Lon)
	case strings.TrimSpace(query) != "":
		return s.Search(ctx, query)
	default:
		return s.locate(ctx, true)
	}
}

// Restore replays the persisted last lookup, or probes the device location
// silently when there is none.
func (s *Service) Restore(ctx context.Context) error {
	last, ok := s.prefs.LastLookup()
	switch {
	case ok && last.Coords != nil:
		return s.UseCoordinates(ctx, last.Coords.Lat, last.Coords.Lon)
	case ok:
		return s.Search(ctx, last.Query)
	default:
		return s.locate(ctx, true)
	}
}

// Refresh re-issues the active lookup under the current unit. It is a no-op
// before the first lookup.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()

	switch {
	case active.Coords != nil:
		return s.UseCoordinates(ctx, active.Coords.Lat, active.Coords.Lon)
	case active.Query != "":
		return s.Search(ctx, active.Query)
	default:
		return nil
	}
}

// ClearError drops the user-facing error, e.g. when the user starts typing again.
func (s *Service) ClearError() {
	s.mu.Lock()
	s.state.Error = ""
	if s.state.Status == StatusFailed {
		s.state.Status = s.settledStatus()
	}
	s.mu.Unlock()
	s.notify()
}

// WaitIdle blocks until background air quality enrichments have finished.
func (s *Service) WaitIdle() {
	s.bg.Wait()
}

// locate runs a one-shot device location request and, on success, a
// coordinate lookup. Silent probes swallow geolocation failures.
func (s *Service) locate(ctx context.Context, silent bool) error {
	t := s.markLoading()

	var (
		coords Coordinates
		err    error
	)
	if s.locator == nil {
		err = ErrGeoUnsupported
	} else {
		coords, err = s.locator.Locate(ctx)
	}

	if err != nil {
		if silent {
			log.Printf("DEBUG: silent geolocation probe failed: %v", err)
			s.settle(t)
			return nil
		}
		return s.fail(t, err)
	}

	if !s.isActive(t) {
		log.Printf("DEBUG: dropping stale geolocation result (lookup %s)", t.id)
		return nil
	}
	return s.UseCoordinates(ctx, coords.Lat, coords.Lon)
}

// markLoading issues a new ticket and moves the state to loading.
func (s *Service) markLoading() ticket {
	s.mu.Lock()
	s.gen++
	t := ticket{gen: s.gen, id: uuid.NewString()}
	s.state.LookupID = t.id
	s.state.Status = StatusLoading
	s.state.Loading = true
	s.state.Error = ""
	s.state.Unit = s.prefs.Unit()
	s.pendingAQI = nil
	s.mu.Unlock()

	s.notify()
	return t
}

// begin starts a lookup: new ticket, loading state, and the intent is
// persisted before any network call resolves.
func (s *Service) begin(intent LastLookup, query string) (ticket, Unit) {
	t := s.markLoading()

	s.mu.Lock()
	s.active = intent
	if query != "" {
		s.state.Query = query
	}
	unit := s.state.Unit
	s.mu.Unlock()

	if err := s.prefs.SaveLastLookup(intent); err != nil {
		log.Printf("ERROR: failed to persist last lookup %q: %v", intent.Encode(), err)
	}

	log.Printf("INFO: lookup %s started for %s (%s)", t.id, intent.Encode(), unit)
	return t, unit
}

func (s *Service) isActive(t ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == t.gen
}

// commit applies a successful lookup. It reports false when the ticket is stale.
func (s *Service) commit(t ticket, current CurrentSnapshot, forecast Forecast) bool {
	s.mu.Lock()
	if s.gen != t.gen {
		s.mu.Unlock()
		log.Printf("DEBUG: %v: dropping result of lookup %s for %s", errStaleLookup, t.id, current.Location.Key())
		return false
	}

	if s.pendingAQI != nil {
		current.AirQualityIndex = s.pendingAQI
		s.pendingAQI = nil
	}
	s.committedGen = t.gen
	s.state.Current = &current
	s.state.Daily = forecast.Daily
	s.state.Hourly = forecast.Hourly
	s.state.Status = StatusSuccess
	s.state.Loading = false
	s.state.Error = ""
	s.mu.Unlock()

	log.Printf("INFO: lookup %s succeeded for %s (%d days, %d hours)",
		t.id, current.Location.Key(), len(forecast.Daily), len(forecast.Hourly))
	s.notify()
	return true
}

// fail moves an active lookup to failed. Stale failures are dropped.
func (s *Service) fail(t ticket, err error) error {
	s.mu.Lock()
	if s.gen != t.gen {
		s.mu.Unlock()
		log.Printf("DEBUG: %v: dropping failure of lookup %s: %v", errStaleLookup, t.id, err)
		return nil
	}
	s.state.Status = StatusFailed
	s.state.Loading = false
	s.state.Error = UserMessage(err)
	s.pendingAQI = nil
	s.mu.Unlock()

	log.Printf("ERROR: lookup %s failed: %v", t.id, err)
	s.notify()
	return err
}

// settle ends an active lookup without an error.
func (s *Service) settle(t ticket) {
	s.mu.Lock()
	if s.gen != t.gen {
		s.mu.Unlock()
		return
	}
	s.state.Loading = false
	s.state.Status = s.settledStatus()
	s.mu.Unlock()
	s.notify()
}

// settledStatus must be called with s.mu held.
func (s *Service) settledStatus() Status {
	if s.state.Current != nil {
		return StatusSuccess
	}
	return StatusIdle
}

// enrichAirQuality fetches the AQI in the background. Failures leave the
// index absent; results for a superseded lookup are discarded.
func (s *Service) enrichAirQuality(t ticket, coords Coordinates) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), airQualityTimeout)
		defer cancel()

		raw, err := s.provider.AirQuality(ctx, coords)
		if err != nil {
			log.Printf("DEBUG: air quality for %s failed (lookup %s): %v", coords, t.id, err)
			return
		}
		if aqi := NormalizeAirQuality(raw); aqi != nil {
			s.applyAirQuality(t, *aqi)
		}
	}()
}

func (s *Service) applyAirQuality(t ticket, aqi int) {
	s.mu.Lock()
	if s.gen != t.gen {
		s.mu.Unlock()
		log.Printf("DEBUG: %v: dropping air quality of lookup %s", errStaleLookup, t.id)
		return
	}

	if s.committedGen != t.gen || s.state.Current == nil {
		// The visible snapshot belongs to another lookup. Hold the value
		// only while this lookup can still commit.
		if s.state.Status == StatusLoading {
			s.pendingAQI = &aqi
		} else {
			log.Printf("DEBUG: dropping air quality of uncommitted lookup %s", t.id)
		}
		s.mu.Unlock()
		return
	}

	current := *s.state.Current
	current.AirQualityIndex = &aqi
	s.state.Current = &current
	s.mu.Unlock()

	s.notify()
}

func (s *Service) notify() {
	if len(s.observers) == 0 {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	st := s.State()
	for _, o := range s.observers {
		o.OnStateChange(st)
	}
}
