package session

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/iotc-device/internal/credential"
	"github.com/nerrad567/iotc-device/internal/dispatch"
	"github.com/nerrad567/iotc-device/internal/infrastructure/mqtt"
	"github.com/nerrad567/iotc-device/internal/provisioning"
)

const testSecret = "dGVzdC1zZWNyZXQtMTIzNDU2Nzg5MA=="

var testNow = time.Unix(1_700_000_000, 0)

type publishRecord struct {
	topic   string
	payload []byte
	qos     byte
	id      uint32
}

// fakeTransport records calls and answers Connect with a scripted CONNACK.
type fakeTransport struct {
	mu sync.Mutex

	events chan mqtt.Event

	connackCode  int
	noConnAck    bool
	connectErr   error
	subscribeErr error

	// publishGate, when set, holds Publish until it is closed.
	publishGate    chan struct{}
	publishStarted chan struct{}

	connects    []mqtt.ConnectOptions
	ops         []string
	subscribed  []string
	published   []publishRecord
	nextID      uint32
	disconnects int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan mqtt.Event, 64)}
}

func (f *fakeTransport) Connect(opts mqtt.ConnectOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, opts)
	f.ops = append(f.ops, "connect")
	if f.connectErr != nil {
		return f.connectErr
	}
	if !f.noConnAck {
		f.events <- mqtt.Event{Type: mqtt.EventConnAck, Code: f.connackCode}
	}
	return nil
}

func (f *fakeTransport) Subscribe(filters []string, _ byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	for _, filter := range filters {
		f.subscribed = append(f.subscribed, filter)
		f.ops = append(f.ops, "sub:"+filter)
	}
	return nil
}

func (f *fakeTransport) Publish(topic string, payload []byte, qos byte) (uint32, error) {
	f.mu.Lock()
	gate, started := f.publishGate, f.publishStarted
	f.publishGate, f.publishStarted = nil, nil
	f.mu.Unlock()
	if gate != nil {
		close(started)
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.published = append(f.published, publishRecord{topic: topic, payload: payload, qos: qos, id: f.nextID})
	f.ops = append(f.ops, "pub:"+topic)
	return f.nextID, nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.ops = append(f.ops, "disconnect")
}

func (f *fakeTransport) Drain() int {
	n := 0
	for {
		select {
		case <-f.events:
			n++
		default:
			return n
		}
	}
}

// gatePublish makes the next Publish block until release is called.
func (f *fakeTransport) gatePublish() (started <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate, st := make(chan struct{}), make(chan struct{})
	f.publishGate, f.publishStarted = gate, st
	return st, func() { close(gate) }
}

func (f *fakeTransport) Events() <-chan mqtt.Event { return f.events }

func (f *fakeTransport) deliver(topic, payload string) {
	f.events <- mqtt.Event{Type: mqtt.EventMessage, Topic: topic, Payload: []byte(payload)}
}

func (f *fakeTransport) ack(id uint32, err error) {
	f.events <- mqtt.Event{Type: mqtt.EventPublishAck, MessageID: id, Err: err}
}

func (f *fakeTransport) lastPublish() publishRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[len(f.published)-1]
}

func (f *fakeTransport) publishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

// fakeProvisioner returns a fixed assignment or error.
type fakeProvisioner struct {
	host  string
	err   error
	block bool
	calls int
}

func (f *fakeProvisioner) Provision(ctx context.Context, _ credential.Identity) (provisioning.Assignment, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return provisioning.Assignment{}, ctx.Err()
	}
	if f.err != nil {
		return provisioning.Assignment{}, f.err
	}
	return provisioning.Assignment{Host: f.host, Polls: 1}, nil
}

// fakeCache is an in-memory AssignmentCache.
type fakeCache struct {
	hosts   map[string]string
	stored  []string
	forgets int
}

func (f *fakeCache) key(scope, device string) string { return scope + "/" + device }

func (f *fakeCache) Lookup(_ context.Context, scope, device string) (string, bool, error) {
	h, ok := f.hosts[f.key(scope, device)]
	return h, ok, nil
}

func (f *fakeCache) Store(_ context.Context, scope, device, host string) error {
	if f.hosts == nil {
		f.hosts = map[string]string{}
	}
	f.hosts[f.key(scope, device)] = host
	f.stored = append(f.stored, host)
	return nil
}

func (f *fakeCache) Forget(_ context.Context, scope, device string) error {
	delete(f.hosts, f.key(scope, device))
	f.forgets++
	return nil
}

// recordingObserver counts notifications.
type recordingObserver struct {
	mu          sync.Mutex
	transitions []string
	published   map[string]int
	acked       map[string]int
	inbound     map[string]int
	anomalies   map[string]int
	provisioned int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		published: map[string]int{},
		acked:     map[string]int{},
		inbound:   map[string]int{},
		anomalies: map[string]int{},
	}
}

func (r *recordingObserver) StateChanged(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, from+">"+to)
}

func (r *recordingObserver) Provisioned(time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.provisioned++
}

func (r *recordingObserver) Published(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published[kind]++
}

func (r *recordingObserver) Acknowledged(kind string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acked[kind]++
}

func (r *recordingObserver) Inbound(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inbound[kind]++
}

func (r *recordingObserver) Anomaly(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anomalies[reason]++
}

// eventLog records dispatched callbacks.
type eventLog struct {
	mu     sync.Mutex
	events []dispatch.Event
}

func (l *eventLog) record(info *dispatch.CallbackInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, info.Event)
}

func (l *eventLog) byName(name dispatch.EventName) []dispatch.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []dispatch.Event
	for _, e := range l.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func testIdentity() credential.Identity {
	return credential.Identity{
		ScopeID:    "0ne000ABCD",
		DeviceID:   "dev1",
		Credential: credential.SymmetricKey(testSecret),
	}
}

// selfSignedPEM generates a throwaway certificate and key.
func selfSignedPEM(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "dev1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
}

func mqttLost(err error) mqtt.Event {
	return mqtt.Event{Type: mqtt.EventConnectionLost, Err: err}
}
