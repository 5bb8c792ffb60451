package service

import (
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	MethodNotAllowed    = 405
	Conflict            = 409
	Locked              = 423
	InternalServerError = 500
)

var (
	ErrParamInvalid      = errors.New("参数错误")
	ErrUserNotFound      = errors.New("用户不存在")
	ErrUserUsernameExist = errors.New("用户名已存在")
	ErrPasswordIncorrect = errors.New("密码错误")
	ErrNotPaired         = errors.New("尚未绑定情侣空间")
	ErrAlreadyPaired     = errors.New("已绑定情侣空间")
	ErrInviteInvalid     = errors.New("邀请码无效")
	ErrCoupleFull        = errors.New("情侣空间已满")
	ErrVaultLocked       = errors.New("私密相册未解锁")
	ErrVaultPassword     = errors.New("私密相册密码错误")
	ErrVaultNoPassword   = errors.New("私密相册未设置密码")
	ErrVaultTooManyTries = errors.New("尝试次数过多，请稍后再试")
	ErrFileNotSupported  = errors.New("不支持的文件类型")
	ErrFileNotExist      = errors.New("文件不存在")
	ErrMediaNotPending   = errors.New("上传凭证无效或已过期")
	ErrImageNotFound     = errors.New("图片不存在")
	ErrCommentNotFound   = errors.New("评论不存在")
	ErrReactionNotFound  = errors.New("表态不存在")
	ErrMessageNotFound   = errors.New("消息不存在")
	ErrMessageEmpty      = errors.New("消息内容不能为空")
	ErrTableNotSupported = errors.New("不支持的数据表")
	ErrMethodNotAllowed  = errors.New("不支持的操作")
	ErrActionDuplicate   = errors.New("重复操作")
	ErrConversation      = errors.New("会话异常")
	UnauthorizedError    = errors.New("权限不足")
	ErrTokenInvalid      = errors.New("登录已失效")
	UnExpectedError      = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:      BadRequest,
	ErrUserNotFound:      NotFound,
	ErrUserUsernameExist: BadRequest,
	ErrPasswordIncorrect: Unauthorized,
	ErrNotPaired:         Forbidden,
	ErrAlreadyPaired:     Conflict,
	ErrInviteInvalid:     BadRequest,
	ErrCoupleFull:        Conflict,
	ErrVaultLocked:       Locked,
	ErrVaultPassword:     Unauthorized,
	ErrVaultNoPassword:   BadRequest,
	ErrVaultTooManyTries: Locked,
	ErrFileNotSupported:  BadRequest,
	ErrFileNotExist:      NotFound,
	ErrMediaNotPending:   BadRequest,
	ErrImageNotFound:     NotFound,
	ErrCommentNotFound:   NotFound,
	ErrReactionNotFound:  NotFound,
	ErrMessageNotFound:   NotFound,
	ErrMessageEmpty:      BadRequest,
	ErrTableNotSupported: NotFound,
	ErrMethodNotAllowed:  MethodNotAllowed,
	ErrActionDuplicate:   Conflict,
	ErrConversation:      BadRequest,
	UnauthorizedError:    Forbidden,
	ErrTokenInvalid:      Unauthorized,
	UnExpectedError:      InternalServerError,
}

// CodeOf 返回错误对应的业务码，沿 errors.Is 链查找
func CodeOf(err error) (int, bool) {
	if code, ok := ErrorMap[err]; ok {
		return code, true
	}
	for target, code := range ErrorMap {
		if errors.Is(err, target) {
			return code, true
		}
	}
	return 0, false
}
