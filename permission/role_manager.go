package permission

import (
	"fmt"
	"sync"
)

// RoleManager binds role names to permission masks.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]Mask64
	frozen bool
}

func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]Mask64),
	}
}

// RegisterRole stores the union of the named permissions for role.
func (rm *RoleManager) RegisterRole(role string, permissions ...string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	switch {
	case rm.frozen:
		return ErrRoleManagerFrozen
	case role == "":
		return ErrEmptyRoleName
	}
	if _, exists := rm.roles[role]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRole, role)
	}

	var mask Mask64
	for _, perm := range permissions {
		bit, ok := rm.registry.Bit(perm)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPermission, perm)
		}
		mask.Set(bit)
	}
	rm.roles[role] = mask
	return nil
}

// RegisterRootRole gives role every permission, including ones registered later.
func (rm *RoleManager) RegisterRootRole(role string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	switch {
	case rm.frozen:
		return ErrRoleManagerFrozen
	case role == "":
		return ErrEmptyRoleName
	}
	if _, exists := rm.roles[role]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRole, role)
	}
	var mask Mask64
	mask.Set(rootBit)
	rm.roles[role] = mask
	return nil
}

func (rm *RoleManager) Mask(role string) (Mask64, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	mask, ok := rm.roles[role]
	return mask, ok
}

// Allowed reports whether role holds perm. Unknown roles and unknown
// permissions are denied.
func (rm *RoleManager) Allowed(role, perm string) bool {
	mask, ok := rm.Mask(role)
	if !ok {
		return false
	}
	if mask.Root() {
		return true
	}
	bit, ok := rm.registry.Bit(perm)
	if !ok {
		return false
	}
	return mask.Has(bit)
}

// Permissions lists what role may do.
func (rm *RoleManager) Permissions(role string) []string {
	mask, ok := rm.Mask(role)
	if !ok {
		return nil
	}
	return rm.registry.Names(mask)
}

func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}
