package mobilenet

import "net/netip"

// PDUSession binds an attached user to an ip address. The ran id is a weak
// reference: identity only, resolved through the core when the cell itself
// is needed.
type PDUSession struct {
	user  *User
	ip    netip.Addr
	ranID uint32
}

// PDUSessionInfo is the wire form of a session.
type PDUSessionInfo struct {
	User UserInfo `json:"user"`
	IP   string   `json:"ip"`
	Ran  uint32   `json:"ran"`
}

// NewPDUSession binds user to ip under the cell ranID.
func NewPDUSession(user *User, ip netip.Addr, ranID uint32) *PDUSession {
	return &PDUSession{user: user, ip: ip, ranID: ranID}
}

func (s *PDUSession) User() *User    { return s.user }
func (s *PDUSession) IP() netip.Addr { return s.ip }
func (s *PDUSession) RanID() uint32  { return s.ranID }

// Info returns the wire form of the session.
func (s *PDUSession) Info() PDUSessionInfo {
	return PDUSessionInfo{User: s.user.Info(), IP: s.ip.String(), Ran: s.ranID}
}

// Release consumes the session, handing back the user and the ip so the
// caller can re-orphan the one and pool the other.
func (s *PDUSession) Release() (*User, netip.Addr) {
	return s.user, s.ip
}

// setRan rebinds the session's cell identity on handover.
func (s *PDUSession) setRan(ranID uint32) {
	s.ranID = ranID
}
