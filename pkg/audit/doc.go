// Package audit records administrative changes to the authorization graph
// and every denied permission check.
//
// # Event Types
//
// Role administration: authz.role_create, authz.role_update, authz.role_delete,
// authz.role_permissions_assign, authz.user_roles_assign
// Gate: authz.access_denied
//
// # Usage Example
//
//	event := audit.NewEvent(ctx, audit.EventTypeRoleDelete, audit.EventStatusSuccess)
//	event.ActorID = &actorID
//	event.ResourceType = audit.ResourceTypeRole
//	event.ResourceID = strconv.FormatInt(roleID, 10)
//	audit.Record(ctx, logger, event)
//
// Search audit logs:
//
//	events, err := dbLogger.Search(ctx, audit.SearchFilter{
//		EventType: audit.EventTypeAccessDenied,
//		Limit:     50,
//	})
//
// # Retention Policy
//
// Default: 90 days, cleaned up nightly by a cron-scheduled RetentionJob.
package audit
