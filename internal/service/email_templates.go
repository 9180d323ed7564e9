package service

import "fmt"

func loginCodeEmailTemplate(username, code string, expiresIn string, appName string) (string, string) {
	subject := fmt.Sprintf("Your %s sign-in code", appName)
	body := fmt.Sprintf(`Hi %s,

Your sign-in code is:

    %s

It expires in %s and can only be used once.

If you didn't try to sign in, someone may know your password. Change it and tell your administrator.

Best,
The %s Team`, username, code, expiresIn, appName)

	return subject, body
}

func accountBlockedEmailTemplate(username string, attempts int, appName string) (string, string) {
	subject := fmt.Sprintf("Your %s account has been locked", appName)
	body := fmt.Sprintf(`Hi %s,

Your account was locked after %d failed sign-in attempts.

An administrator has to unlock it before you can sign in again.

Best,
The %s Team`, username, attempts, appName)

	return subject, body
}

func passwordChangedEmailTemplate(username, appName string) (string, string) {
	subject := fmt.Sprintf("Your %s password was changed", appName)
	body := fmt.Sprintf(`Hi %s,

The password for your account was just changed.

If this wasn't you, contact your administrator right away.

Best,
The %s Team`, username, appName)

	return subject, body
}
