package utils

import (
	"encoding/json"
	"net"

	"stayza-server/models"
	"stayza-server/storage"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func Audit(ctx iris.Context, action, resourceType string, resourceID uint, before interface{}, after interface{}) {
	var beforeStr, afterStr string
	if before != nil {
		if b, err := json.Marshal(before); err == nil {
			beforeStr = string(b)
		}
	}
	if after != nil {
		if a, err := json.Marshal(after); err == nil {
			afterStr = string(a)
		}
	}
	var actorID uint
	if tok := jwt.Get(ctx); tok != nil {
		if at, ok := tok.(*AccessToken); ok {
			actorID = at.ID
		}
	}
	ip := clientIP(ctx)
	entry := models.AuditLog{ActorUserID: actorID, Action: action, ResourceType: resourceType, ResourceID: resourceID, BeforeJSON: beforeStr, AfterJSON: afterStr, IPAddress: ip}
	storage.DB.Create(&entry)
}

// AuditSystem records an action with no request context, e.g. a
// reconciliation mismatch detected while handling a gateway webhook.
func AuditSystem(action, resourceType string, resourceID uint, detail interface{}) {
	var detailStr string
	if detail != nil {
		if d, err := json.Marshal(detail); err == nil {
			detailStr = string(d)
		}
	}
	entry := models.AuditLog{Action: action, ResourceType: resourceType, ResourceID: resourceID, AfterJSON: detailStr}
	storage.DB.Create(&entry)
}

func clientIP(ctx iris.Context) string {
	if ip := ctx.GetHeader("X-Forwarded-For"); ip != "" {
		return ip
	}
	ip, _, _ := net.SplitHostPort(ctx.RemoteAddr())
	return ip
}
