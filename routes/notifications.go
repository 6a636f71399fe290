package routes

import (
	"time"

	"stayza-server/models"
	"stayza-server/storage"
	"stayza-server/utils"

	"github.com/kataras/iris/v12"
)

func GetUserNotifications(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var notifications []models.Notification
	res := storage.DB.Where("user_id = ?", userID).Order("created_at DESC").Limit(100).Find(&notifications)
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(notifications)
}

func MarkNotificationRead(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid notification ID", ctx)
		return
	}

	now := time.Now()
	res := storage.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if res.RowsAffected == 0 {
		utils.CreateNotFound(ctx)
		return
	}

	ctx.JSON(iris.Map{"ok": true})
}
