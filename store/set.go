package store

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Set is an enumerable set of words kept in slots, scoped per owner. Members
// are dense in positions [0, Len); removal moves the last member into the
// vacated position.
//
// Slots used, for owner o:
//
//	len(o)        number of members
//	at(o, i)      member at position i
//	index(o, m)   position of m plus one, zero if absent
type Set struct {
	Namespace string
}

func (s Set) lenKey(owner common.Hash) common.Hash {
	return Key(s.Namespace+".len", owner[:])
}

// AtKey returns the slot holding the member at position i. Callers may derive
// parallel slots from the same position.
func (s Set) AtKey(owner common.Hash, i uint64) common.Hash {
	return Key(s.Namespace+".at", owner[:], Uint64Bytes(i))
}

func (s Set) indexKey(owner, member common.Hash) common.Hash {
	return Key(s.Namespace+".index", owner[:], member[:])
}

func (s Set) Len(r Reader, owner common.Hash) (uint64, error) {
	w, err := r.Get(s.lenKey(owner))
	if err != nil {
		return 0, err
	}
	return WordUint64(w), nil
}

// IndexOf returns the position of member and whether it is present.
func (s Set) IndexOf(r Reader, owner, member common.Hash) (uint64, bool, error) {
	w, err := r.Get(s.indexKey(owner, member))
	if err != nil {
		return 0, false, err
	}
	idx := WordUint64(w)
	if idx == 0 {
		return 0, false, nil
	}
	return idx - 1, true, nil
}

func (s Set) Contains(r Reader, owner, member common.Hash) (bool, error) {
	_, ok, err := s.IndexOf(r, owner, member)
	return ok, err
}

func (s Set) At(r Reader, owner common.Hash, i uint64) (common.Hash, error) {
	return r.Get(s.AtKey(owner, i))
}

// Add appends member. It returns the new position, or false if member was
// already present.
func (s Set) Add(rw ReadWriter, owner, member common.Hash) (uint64, bool, error) {
	if _, ok, err := s.IndexOf(rw, owner, member); err != nil || ok {
		return 0, false, err
	}
	n, err := s.Len(rw, owner)
	if err != nil {
		return 0, false, err
	}
	rw.Set(s.AtKey(owner, n), member)
	rw.Set(s.indexKey(owner, member), Uint64Word(n+1))
	rw.Set(s.lenKey(owner), Uint64Word(n+1))
	return n, true, nil
}

// Remove deletes member by swap-and-pop. It returns the position member
// occupied and the position of the member moved into it (equal when member
// was last). ok is false if member was absent.
func (s Set) Remove(rw ReadWriter, owner, member common.Hash) (removed, moved uint64, ok bool, err error) {
	idx, ok, err := s.IndexOf(rw, owner, member)
	if err != nil || !ok {
		return 0, 0, false, err
	}
	n, err := s.Len(rw, owner)
	if err != nil {
		return 0, 0, false, err
	}
	if n == 0 {
		return 0, 0, false, fmt.Errorf("set %s: member indexed but length is zero", s.Namespace)
	}
	last := n - 1
	if idx != last {
		lastMember, err := s.At(rw, owner, last)
		if err != nil {
			return 0, 0, false, err
		}
		rw.Set(s.AtKey(owner, idx), lastMember)
		rw.Set(s.indexKey(owner, lastMember), Uint64Word(idx+1))
	}
	rw.Set(s.AtKey(owner, last), common.Hash{})
	rw.Set(s.indexKey(owner, member), common.Hash{})
	rw.Set(s.lenKey(owner), Uint64Word(last))
	return idx, last, true, nil
}

// Members returns all members in position order.
func (s Set) Members(r Reader, owner common.Hash) ([]common.Hash, error) {
	n, err := s.Len(r, owner)
	if err != nil {
		return nil, err
	}
	members := make([]common.Hash, n)
	for i := range n {
		if members[i], err = s.At(r, owner, i); err != nil {
			return nil, err
		}
	}
	return members, nil
}
