package cache

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// =============================================================================
// 🧪 键命名空间性质测试
// =============================================================================

// splitUserKey 按构造规则反解用户键；用户 ID 不含分隔符时解析无歧义
func splitUserKey(raw string) (userID, key string, ok bool) {
	rest, found := strings.CutPrefix(raw, userKeyPrefix)
	if !found {
		return "", "", false
	}
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func TestProperty_UserKeyRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("构造后的用户键可无损反解", prop.ForAll(
		func(userID, key string) bool {
			raw := userKey(userID, key)
			gotID, gotKey, ok := splitUserKey(raw)
			if !ok {
				t.Logf("无法反解: %q", raw)
				return false
			}
			if gotID != userID || gotKey != key {
				t.Logf("反解不一致: %q -> (%q, %q)", raw, gotID, gotKey)
				return false
			}
			return true
		},
		gen.Identifier(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestProperty_UserKeyInjective(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("不同的 (用户, 键) 组合映射到不同的底层键", prop.ForAll(
		func(id1, key1, id2, key2 string) bool {
			same := id1 == id2 && key1 == key2
			collide := userKey(id1, key1) == userKey(id2, key2)
			if same != collide {
				t.Logf("(%q,%q) vs (%q,%q): same=%v collide=%v",
					id1, key1, id2, key2, same, collide)
				return false
			}
			return true
		},
		gen.Identifier(),
		gen.AnyString(),
		gen.Identifier(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestProperty_UserKeyPrefixStable(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("用户键永远落在 user: 命名空间内", prop.ForAll(
		func(userID, key string) bool {
			raw := userKey(userID, key)
			return strings.HasPrefix(raw, "user:") && !strings.HasPrefix(raw, "session:")
		},
		gen.Identifier(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
