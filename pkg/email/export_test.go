package email

var NewPostmarkSenderWithClient = newPostmarkSender
