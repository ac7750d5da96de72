package middleware

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const CurrentUserKey = "current_user_id"

// LoadUser 解析可选的读者身份并放进请求上下文
// 会话的签发归外部认证系统管，这里只读：优先取会话里的 user_id，
// 服务间调用退回到 X-User-ID 头。没有身份也放行——匿名读者同样可以看文章。
func LoadUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if v := session.Get("user_id"); v != nil {
			if id, ok := v.(string); ok && id != "" {
				c.Set(CurrentUserKey, id)
				c.Next()
				return
			}
		}

		if id := c.GetHeader("X-User-ID"); id != "" {
			c.Set(CurrentUserKey, id)
		}
		c.Next()
	}
}

// CurrentUserID 从上下文取当前读者身份，匿名时返回空串
func CurrentUserID(c *gin.Context) string {
	if v, ok := c.Get(CurrentUserKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
