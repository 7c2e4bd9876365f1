package impl

import (
	"sessiongate/internal/domain/entity"
	"sessiongate/internal/util"
)

func newAccessLog(logType entity.AccessLogType, userID string, sessionID int64, ip, userAgent, location, endpoint string) *entity.AccessLog {
	browser, os := util.ClassifyUserAgent(userAgent)
	if location == "" {
		location = entity.UnknownValue
	}

	return &entity.AccessLog{
		UserID:    userID,
		SessionID: sessionID,
		Type:      logType,
		IPAddress: ip,
		UserAgent: userAgent,
		Browser:   browser,
		OS:        os,
		Location:  location,
		Endpoint:  endpoint,
	}
}
