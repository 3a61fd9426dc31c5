package email

const subjectStopFailureFmt = "[CRM automation] Stop not confirmed for lead %s"
