// Package redisstore implements store.Store on Redis. Every multi-key
// mutation runs as a Lua script so concurrent readers never observe a
// partially applied change.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/MrEthical07/rolegate/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix is the key namespace used when none is configured.
const DefaultPrefix = "rg"

// Store is a Redis-backed store.Store.
//
// Key layout:
//
//	<prefix>:roles                  SET of role ids
//	<prefix>:role:<id>              HASH id,name,desc,protected,perms,ver_s,ver_ns
//	<prefix>:role:<id>:members      SET of identity ids assigned to the role
//	<prefix>:ident:<id>             HASH id,email,name,hash,status,role,av,created
//	<prefix>:email:<email>          STRING identity id
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns a Store using the wall clock.
func New(client redis.UniversalClient, prefix string) *Store {
	return NewWithClock(client, prefix, time.Now)
}

// NewWithClock returns a Store that reads time from now.
func NewWithClock(client redis.UniversalClient, prefix string, now func() time.Time) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if now == nil {
		now = time.Now
	}
	return &Store{redis: client, prefix: prefix, now: now}
}

func (s *Store) rolesKey() string { return s.prefix + ":roles" }
func (s *Store) roleKey(id string) string { return s.prefix + ":role:" + id }
func (s *Store) membersKey(roleID string) string { return s.prefix + ":role:" + roleID + ":members" }
func (s *Store) identityKey(id string) string { return s.prefix + ":ident:" + id }
func (s *Store) emailKey(email string) string { return s.prefix + ":email:" + email }

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) FindRole(ctx context.Context, id string) (store.Role, error) {
	fields, err := s.redis.HGetAll(ctx, s.roleKey(id)).Result()
	if err != nil {
		return store.Role{}, unavailable(err)
	}
	if len(fields) == 0 {
		return store.Role{}, store.ErrNotFound
	}
	return decodeRole(fields)
}

func (s *Store) ListRoles(ctx context.Context) ([]store.Role, error) {
	ids, err := s.redis.SMembers(ctx, s.rolesKey()).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(ids) == 0 {
		return []store.Role{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.roleKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, unavailable(err)
	}

	out := make([]store.Role, 0, len(ids))
	for _, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return nil, unavailable(err)
		}
		// Deleted between SMEMBERS and HGETALL.
		if len(fields) == 0 {
			continue
		}
		role, err := decodeRole(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateRole(ctx context.Context, role store.Role) (store.Role, error) {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	role.Permissions = store.NormalizeKeys(role.Permissions)
	role.UpdatedAt = store.NextVersion(time.Time{}, s.now(), time.Nanosecond).UTC()

	perms, err := json.Marshal(role.Permissions)
	if err != nil {
		return store.Role{}, err
	}
	protected := "0"
	if role.Protected {
		protected = "1"
	}

	res, err := createRoleLua.Run(ctx, s.redis,
		[]string{s.roleKey(role.ID), s.rolesKey()},
		role.ID, role.Name, role.Description, protected, string(perms),
		strconv.FormatInt(role.UpdatedAt.Unix(), 10),
		strconv.Itoa(role.UpdatedAt.Nanosecond()),
	).Int64()
	if err != nil {
		return store.Role{}, unavailable(err)
	}
	if res == createRoleConflict {
		return store.Role{}, store.ErrConflict
	}
	return role, nil
}

func (s *Store) ReplaceRolePermissions(ctx context.Context, roleID string, keys []string) (store.Role, error) {
	normalized := store.NormalizeKeys(keys)
	perms, err := json.Marshal(normalized)
	if err != nil {
		return store.Role{}, err
	}
	if _, err := s.bump(ctx, roleID, true, string(perms)); err != nil {
		return store.Role{}, err
	}
	return s.FindRole(ctx, roleID)
}

func (s *Store) TouchRoleVersion(ctx context.Context, roleID string) (time.Time, error) {
	return s.bump(ctx, roleID, false, "")
}

func (s *Store) bump(ctx context.Context, roleID string, replace bool, perms string) (time.Time, error) {
	now := s.now()
	flag := "0"
	if replace {
		flag = "1"
	}

	vals, err := bumpRoleLua.Run(ctx, s.redis,
		[]string{s.roleKey(roleID)},
		strconv.FormatInt(now.Unix(), 10),
		strconv.Itoa(now.Nanosecond()),
		"1",
		flag,
		perms,
	).Int64Slice()
	if err != nil {
		return time.Time{}, unavailable(err)
	}
	if len(vals) != 2 {
		return time.Time{}, unavailable(errors.New("unexpected script reply"))
	}
	if vals[0] < 0 {
		return time.Time{}, store.ErrNotFound
	}
	return time.Unix(vals[0], vals[1]).UTC(), nil
}

func (s *Store) DeleteRole(ctx context.Context, roleID string) error {
	res, err := deleteRoleLua.Run(ctx, s.redis,
		[]string{s.roleKey(roleID), s.membersKey(roleID), s.rolesKey()},
		roleID,
	).Int64()
	if err != nil {
		return unavailable(err)
	}

	switch res {
	case deleteRoleNotFound:
		return store.ErrNotFound
	case deleteRoleProtected:
		return store.ErrProtectedRole
	case deleteRoleInUse:
		return store.ErrInUse
	case deleteRoleDeleted:
		return nil
	default:
		return unavailable(fmt.Errorf("unexpected delete status %d", res))
	}
}

func (s *Store) FindIdentity(ctx context.Context, id string) (store.Identity, error) {
	fields, err := s.redis.HGetAll(ctx, s.identityKey(id)).Result()
	if err != nil {
		return store.Identity{}, unavailable(err)
	}
	if len(fields) == 0 {
		return store.Identity{}, store.ErrNotFound
	}
	return decodeIdentity(fields)
}

func (s *Store) FindIdentityByEmail(ctx context.Context, email string) (store.Identity, error) {
	id, err := s.redis.Get(ctx, s.emailKey(store.NormalizeEmail(email))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return store.Identity{}, store.ErrNotFound
		}
		return store.Identity{}, unavailable(err)
	}
	return s.FindIdentity(ctx, id)
}

func (s *Store) CreateIdentity(ctx context.Context, ident store.Identity) (store.Identity, error) {
	if ident.ID == "" {
		ident.ID = uuid.NewString()
	}
	ident.Email = store.NormalizeEmail(ident.Email)
	if ident.Status == "" {
		ident.Status = store.StatusActive
	}
	ident.CreatedAt = s.now().UTC()

	res, err := createIdentityLua.Run(ctx, s.redis,
		[]string{
			s.identityKey(ident.ID),
			s.emailKey(ident.Email),
			s.roleKey(ident.RoleID),
			s.membersKey(ident.RoleID),
		},
		ident.ID, ident.Email, ident.Name, ident.PasswordHash, string(ident.Status), ident.RoleID,
		strconv.FormatInt(ident.CreatedAt.UnixNano(), 10),
	).Int64()
	if err != nil {
		return store.Identity{}, unavailable(err)
	}

	switch res {
	case createIdentityRoleMissing:
		return store.Identity{}, store.ErrNotFound
	case createIdentityConflict:
		return store.Identity{}, store.ErrConflict
	}
	ident.AccountVersion = 1
	return ident, nil
}

func (s *Store) AssignRole(ctx context.Context, identityID, roleID string) (store.Identity, error) {
	vals, err := assignRoleLua.Run(ctx, s.redis,
		[]string{s.identityKey(identityID), s.roleKey(roleID), s.membersKey(roleID)},
		identityID, roleID, s.prefix,
	).Int64Slice()
	if err != nil {
		return store.Identity{}, unavailable(err)
	}
	if err := identityStatusErr(vals); err != nil {
		return store.Identity{}, err
	}
	return s.FindIdentity(ctx, identityID)
}

func (s *Store) UpdateIdentityStatus(ctx context.Context, identityID string, status store.IdentityStatus) (store.Identity, error) {
	vals, err := updateStatusLua.Run(ctx, s.redis,
		[]string{s.identityKey(identityID)},
		string(status),
	).Int64Slice()
	if err != nil {
		return store.Identity{}, unavailable(err)
	}
	if err := identityStatusErr(vals); err != nil {
		return store.Identity{}, err
	}
	return s.FindIdentity(ctx, identityID)
}

func identityStatusErr(vals []int64) error {
	if len(vals) != 2 {
		return unavailable(errors.New("unexpected script reply"))
	}
	switch vals[0] {
	case identityMissing, identityRoleGone:
		return store.ErrNotFound
	case identityUnchanged, identityChanged:
		return nil
	default:
		return unavailable(fmt.Errorf("unexpected identity status %d", vals[0]))
	}
}

func (s *Store) UpdatePasswordHash(ctx context.Context, identityID, hash string) error {
	res, err := setHashLua.Run(ctx, s.redis, []string{s.identityKey(identityID)}, hash).Int64()
	if err != nil {
		return unavailable(err)
	}
	if res == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteIdentity(ctx context.Context, identityID string) error {
	res, err := deleteIdentityLua.Run(ctx, s.redis,
		[]string{s.identityKey(identityID)},
		identityID, s.prefix,
	).Int64()
	if err != nil {
		return unavailable(err)
	}
	if res == 0 {
		return store.ErrNotFound
	}
	return nil
}

func decodeRole(fields map[string]string) (store.Role, error) {
	var perms []string
	if raw := fields["perms"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &perms); err != nil {
			return store.Role{}, fmt.Errorf("decode role %s permissions: %w", fields["id"], err)
		}
	}
	if perms == nil {
		perms = []string{}
	}

	sec, err := strconv.ParseInt(fields["ver_s"], 10, 64)
	if err != nil {
		return store.Role{}, fmt.Errorf("decode role %s version: %w", fields["id"], err)
	}
	nsec, err := strconv.ParseInt(fields["ver_ns"], 10, 64)
	if err != nil {
		return store.Role{}, fmt.Errorf("decode role %s version: %w", fields["id"], err)
	}

	return store.Role{
		ID:          fields["id"],
		Name:        fields["name"],
		Description: fields["desc"],
		Protected:   fields["protected"] == "1",
		Permissions: perms,
		UpdatedAt:   time.Unix(sec, nsec).UTC(),
	}, nil
}

func decodeIdentity(fields map[string]string) (store.Identity, error) {
	av, err := strconv.ParseUint(fields["av"], 10, 64)
	if err != nil {
		return store.Identity{}, fmt.Errorf("decode identity %s: %w", fields["id"], err)
	}
	created, err := strconv.ParseInt(fields["created"], 10, 64)
	if err != nil {
		return store.Identity{}, fmt.Errorf("decode identity %s: %w", fields["id"], err)
	}

	return store.Identity{
		ID:             fields["id"],
		Email:          fields["email"],
		Name:           fields["name"],
		PasswordHash:   fields["hash"],
		Status:         store.IdentityStatus(fields["status"]),
		RoleID:         fields["role"],
		AccountVersion: av,
		CreatedAt:      time.Unix(0, created).UTC(),
	}, nil
}
