package redisstore

import "github.com/redis/go-redis/v9"

// Role versions are kept as two hash fields (ver_s, ver_ns) because Lua
// numbers are doubles and cannot hold a nanosecond timestamp exactly.

const (
	createRoleCreated  int64 = 1
	createRoleConflict int64 = 0
)

const createRoleScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "id", ARGV[1],
  "name", ARGV[2],
  "desc", ARGV[3],
  "protected", ARGV[4],
  "perms", ARGV[5],
  "ver_s", ARGV[6],
  "ver_ns", ARGV[7])
redis.call("SADD", KEYS[2], ARGV[1])
return 1
`

var createRoleLua = redis.NewScript(createRoleScript)

// bumpRoleScript advances the role version and, when ARGV[4] is "1",
// replaces the permission list in the same step.
const bumpRoleScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return {-1, 0}
end
local prev_s = tonumber(redis.call("HGET", KEYS[1], "ver_s") or "0")
local prev_ns = tonumber(redis.call("HGET", KEYS[1], "ver_ns") or "0")
local now_s = tonumber(ARGV[1])
local now_ns = tonumber(ARGV[2])
local step = tonumber(ARGV[3])

local next_s = now_s
local next_ns = now_ns - (now_ns % step)
if next_s < prev_s or (next_s == prev_s and next_ns <= prev_ns) then
  next_s = prev_s
  next_ns = prev_ns + step
  if next_ns >= 1000000000 then
    next_s = next_s + 1
    next_ns = next_ns - 1000000000
  end
end

if ARGV[4] == "1" then
  redis.call("HSET", KEYS[1], "perms", ARGV[5])
end
redis.call("HSET", KEYS[1], "ver_s", string.format("%d", next_s), "ver_ns", string.format("%d", next_ns))
return {next_s, next_ns}
`

var bumpRoleLua = redis.NewScript(bumpRoleScript)

const (
	deleteRoleNotFound  int64 = 0
	deleteRoleProtected int64 = 1
	deleteRoleInUse     int64 = 2
	deleteRoleDeleted   int64 = 3
)

const deleteRoleScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "protected") == "1" then
  return 1
end
if redis.call("SCARD", KEYS[2]) > 0 then
  return 2
end
redis.call("DEL", KEYS[1])
redis.call("DEL", KEYS[2])
redis.call("SREM", KEYS[3], ARGV[1])
return 3
`

var deleteRoleLua = redis.NewScript(deleteRoleScript)

const (
	createIdentityRoleMissing int64 = 0
	createIdentityConflict    int64 = 1
	createIdentityCreated     int64 = 2
)

const createIdentityScript = `
if redis.call("EXISTS", KEYS[3]) == 0 then
  return 0
end
if redis.call("EXISTS", KEYS[1]) == 1 or redis.call("EXISTS", KEYS[2]) == 1 then
  return 1
end
redis.call("HSET", KEYS[1],
  "id", ARGV[1],
  "email", ARGV[2],
  "name", ARGV[3],
  "hash", ARGV[4],
  "status", ARGV[5],
  "role", ARGV[6],
  "av", "1",
  "created", ARGV[7])
redis.call("SET", KEYS[2], ARGV[1])
redis.call("SADD", KEYS[4], ARGV[1])
return 2
`

var createIdentityLua = redis.NewScript(createIdentityScript)

const (
	identityMissing   int64 = 0
	identityRoleGone  int64 = 1
	identityUnchanged int64 = 2
	identityChanged   int64 = 3
)

// assignRoleScript moves the identity between role member sets. ARGV[3] is
// the key prefix used to derive the previous role's member set.
const assignRoleScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return {0, 0}
end
if redis.call("EXISTS", KEYS[2]) == 0 then
  return {1, 0}
end
local current = redis.call("HGET", KEYS[1], "role") or ""
if current == ARGV[2] then
  return {2, tonumber(redis.call("HGET", KEYS[1], "av") or "0")}
end
if current ~= "" then
  redis.call("SREM", ARGV[3] .. ":role:" .. current .. ":members", ARGV[1])
end
redis.call("SADD", KEYS[3], ARGV[1])
redis.call("HSET", KEYS[1], "role", ARGV[2])
local av = redis.call("HINCRBY", KEYS[1], "av", 1)
return {3, av}
`

var assignRoleLua = redis.NewScript(assignRoleScript)

const updateStatusScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return {0, 0}
end
if redis.call("HGET", KEYS[1], "status") == ARGV[1] then
  return {2, tonumber(redis.call("HGET", KEYS[1], "av") or "0")}
end
redis.call("HSET", KEYS[1], "status", ARGV[1])
local av = redis.call("HINCRBY", KEYS[1], "av", 1)
return {3, av}
`

var updateStatusLua = redis.NewScript(updateStatusScript)

const setHashScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "hash", ARGV[1])
return 1
`

var setHashLua = redis.NewScript(setHashScript)

const deleteIdentityScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
local email = redis.call("HGET", KEYS[1], "email") or ""
local role = redis.call("HGET", KEYS[1], "role") or ""
redis.call("DEL", KEYS[1])
if email ~= "" then
  redis.call("DEL", ARGV[2] .. ":email:" .. email)
end
if role ~= "" then
  redis.call("SREM", ARGV[2] .. ":role:" .. role .. ":members", ARGV[1])
end
return 1
`

var deleteIdentityLua = redis.NewScript(deleteIdentityScript)
