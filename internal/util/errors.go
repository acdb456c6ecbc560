package util

import "errors"

var (
	ErrUserNotFound       = errors.New("用户不存在")
	ErrUsernameTaken      = errors.New("该用户名已被占用")
	ErrEmailRegistered    = errors.New("该邮箱已被注册")
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrPermissionDenied   = errors.New("permission denied")

	ErrCommunityNotFound  = errors.New("community not found")
	ErrCommunityNameTaken = errors.New("community name already taken")
	ErrAdminCannotLeave   = errors.New("community admin cannot leave the community")
	ErrNotParticipant     = errors.New("not a participant of this community")

	ErrQuestionNotFound  = errors.New("question not found")
	ErrAnswerNotFound    = errors.New("answer not found")
	ErrInvalidVoteTarget = errors.New("invalid vote target")
	ErrInvalidVoteValue  = errors.New("vote value must be 1 or -1")
)
